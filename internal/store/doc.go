// Package store is the MongoDB layer: the connection descriptor and Connect,
// the tour, review and user models with their validation rules, the list
// query parser, and one repository per collection.
//
// Repositories take a context on every call and return ErrNotFound or
// *InvalidIDError for the cases routers turn into client errors. Everything
// else is passed through for the global error handler to translate.
package store
