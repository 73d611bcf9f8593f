// Package origin implements the browser Origin policy for the HTTP and
// WebSocket surface.
package origin

import (
	"net/url"
	"strings"
)

// Normalize validates a browser Origin header and returns it in canonical
// scheme://host[:port] form, plus the host[:port] part for same-host
// comparisons. Default ports are stripped. The sandbox value "null" is
// passed through.
func Normalize(originHeader string) (normalized string, host string, ok bool) {
	trimmed := strings.TrimSpace(originHeader)
	if trimmed == "" {
		return "", "", false
	}
	if trimmed == "null" {
		return "null", "", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host = canonicalHost(strings.ToLower(u.Host), scheme)
	if host == "" {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// Allowed reports whether a normalized origin may access the request host.
//
// With a non-empty allowlist, entries are matched exactly ("*" matches
// anything). With an empty allowlist the policy is same-host: the origin's
// host[:port] must equal the request's Host header. Scheme is deliberately
// not compared since a TLS-terminating proxy makes the backend see http for
// an https page.
func Allowed(normalized, originHost, requestHost string, allowlist []string) bool {
	if len(allowlist) > 0 {
		for _, entry := range allowlist {
			if entry == "*" || entry == normalized {
				return true
			}
		}
		return false
	}

	scheme, _, found := strings.Cut(normalized, "://")
	if !found {
		// "null" and anything unnormalized cannot match a host.
		return false
	}
	return originHost == canonicalHost(strings.ToLower(strings.TrimSpace(requestHost)), scheme)
}

// canonicalHost lowercases host[:port] and strips the scheme's default port.
// Returns "" for hosts it cannot make sense of.
func canonicalHost(hostport, scheme string) string {
	if hostport == "" {
		return ""
	}

	host, port := hostport, ""
	if i := strings.LastIndexByte(hostport, ':'); i >= 0 && !strings.HasSuffix(hostport, "]") {
		// A colon after the last ']' (or in a bracket-less host) separates the
		// port. Unbracketed IPv6 literals are not valid authority syntax.
		if strings.Count(hostport, ":") > 1 && !strings.HasPrefix(hostport, "[") {
			return ""
		}
		host, port = hostport[:i], hostport[i+1:]
		if host == "" || port == "" {
			return ""
		}
	}

	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port == "" {
		return host
	}
	return host + ":" + port
}
