package opshttp

import (
	"net"
	"net/http"
	"net/netip"

	"github.com/keithlinneman/tours-api/internal/log"
)

// requireNonPublicNetwork rejects peers outside loopback, private and
// link-local ranges, and any request that came through a proxy.
func requireNonPublicNetwork(L log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !nonPublicPeer(r.RemoteAddr) {
			L.Warn(r.Context(), "ops request from public address rejected", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			http.Error(w, "forbidden\n", http.StatusForbidden)
			return
		}
		if r.Header.Get("X-Forwarded-For") != "" || r.Header.Get("Forwarded") != "" {
			L.Warn(r.Context(), "ops request with forwarding headers rejected", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			http.Error(w, "forbidden\n", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func nonPublicPeer(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
