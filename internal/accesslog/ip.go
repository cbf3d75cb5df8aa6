package accesslog

import (
	"regexp"
	"strings"
)

var (
	ipv4Regex = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|1?[0-9]{1,2})\.){3}(?:25[0-5]|2[0-4][0-9]|1?[0-9]{1,2})\b`)
	ipv6Regex = regexp.MustCompile(`(?:^|\s)(?:` +
		`(?:[A-Fa-f0-9]{1,4}:){7}[A-Fa-f0-9]{1,4}|` +
		`(?:[A-Fa-f0-9]{1,4}:){1,7}:|` +
		`(?:[A-Fa-f0-9]{1,4}:){1,6}:[A-Fa-f0-9]{1,4}|` +
		`(?:[A-Fa-f0-9]{1,4}:){1,5}(?::[A-Fa-f0-9]{1,4}){1,2}|` +
		`(?:[A-Fa-f0-9]{1,4}:){1,4}(?::[A-Fa-f0-9]{1,4}){1,3}|` +
		`(?:[A-Fa-f0-9]{1,4}:){1,3}(?::[A-Fa-f0-9]{1,4}){1,4}|` +
		`(?:[A-Fa-f0-9]{1,4}:){1,2}(?::[A-Fa-f0-9]{1,4}){1,5}|` +
		`[A-Fa-f0-9]{1,4}:(?:(?::[A-Fa-f0-9]{1,4}){1,6})|` +
		`:(?:(?::[A-Fa-f0-9]{1,4}){1,7}|:))` +
		`(?:$|\s)`)
)

// ExtractIPPort splits an address as printed by the exporters into IP and
// port. It understands "[v6]:port", bare IPv6 and IPv4 with an optional
// ":port". Unrecognized input yields two empty strings.
func ExtractIPPort(full string) (ip, port string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}

	if i := strings.Index(full, "]:"); i >= 0 {
		return strings.TrimPrefix(full[:i], "["), full[i+2:]
	}

	if bare := strings.Trim(full, "[]"); ipv6Regex.MatchString(bare) {
		return bare, ""
	}

	host, rest, hasPort := strings.Cut(full, ":")
	if !ipv4Regex.MatchString(host) {
		return "", ""
	}
	if hasPort {
		return host, rest
	}
	return full, ""
}
