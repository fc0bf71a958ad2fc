package store

import (
	"strings"
	"time"
	"unicode"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	toursCollection   = "tours"
	reviewsCollection = "reviews"
	usersCollection   = "users"
)

// Location is a GeoJSON point with display details.
type Location struct {
	Type        string    `bson:"type" json:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates" validate:"omitempty,len=2"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name" validate:"required,min=10,max=40"`
	Slug            string               `bson:"slug" json:"slug"`
	Duration        int                  `bson:"duration" json:"duration" validate:"required,gt=0"`
	MaxGroupSize    int                  `bson:"maxGroupSize" json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string               `bson:"difficulty" json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64              `bson:"ratingsAverage" json:"ratingsAverage" validate:"gte=1,lte=5"`
	RatingsQuantity int                  `bson:"ratingsQuantity" json:"ratingsQuantity" validate:"gte=0"`
	Price           float64              `bson:"price" json:"price" validate:"required,gt=0"`
	PriceDiscount   float64              `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty" validate:"omitempty,gte=0,ltfield=Price"`
	Summary         string               `bson:"summary" json:"summary" validate:"required"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string               `bson:"imageCover" json:"imageCover" validate:"required"`
	Images          []string             `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	StartDates      []time.Time          `bson:"startDates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool                 `bson:"secretTour" json:"-"`
	StartLocation   *Location            `bson:"startLocation,omitempty" json:"startLocation,omitempty" validate:"omitempty"`
	Locations       []Location           `bson:"locations,omitempty" json:"locations,omitempty" validate:"dive"`
	Guides          []primitive.ObjectID `bson:"guides,omitempty" json:"guides,omitempty"`
}

// DurationWeeks is derived, never stored.
func (t *Tour) DurationWeeks() float64 { return float64(t.Duration) / 7 }

// prepare fills derived and defaulted fields before a write.
func (t *Tour) prepare(now time.Time) {
	t.Slug = Slugify(t.Name)
	if t.RatingsAverage == 0 {
		t.RatingsAverage = 4.5
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now.UTC()
	}
}

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Review    string             `bson:"review" json:"review" validate:"required"`
	Rating    float64            `bson:"rating" json:"rating" validate:"required,gte=1,lte=5"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour" validate:"required"`
	User      primitive.ObjectID `bson:"user" json:"user" validate:"required"`
}

const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name              string             `bson:"name" json:"name" validate:"required"`
	Email             string             `bson:"email" json:"email" validate:"required,email"`
	Photo             string             `bson:"photo" json:"photo"`
	Role              string             `bson:"role" json:"role" validate:"oneof=user guide lead-guide admin"`
	PasswordHash      string             `bson:"password" json:"-"`
	PasswordChangedAt *time.Time         `bson:"passwordChangedAt,omitempty" json:"-"`
	Active            bool               `bson:"active" json:"-"`
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Truncate(time.Second).After(iat)
}

func (u *User) prepare() {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Photo == "" {
		u.Photo = "default.jpg"
	}
	u.Active = true
}

// Slugify lower-cases s and joins its alphanumeric runs with '-'.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

func bsonKeys(names ...string) bson.D {
	d := make(bson.D, 0, len(names))
	for _, n := range names {
		d = append(d, bson.E{Key: n, Value: 1})
	}
	return d
}
