package models

import (
	"sort"
	"time"
)

// AccessLog is one observed access event.
type AccessLog struct {
	IP   string    `json:"ip"`
	Port string    `json:"port,omitempty"`
	Time time.Time `json:"time"`
	// Identifier overrides the owning UserAccessLogs identifier when one
	// source aggregates several identities.
	Identifier string `json:"identifier,omitempty"`
}

// UserAccessLogs groups the access events of one account.
type UserAccessLogs struct {
	Service    string      `json:"service"`
	Identifier string      `json:"identifier"`
	Logs       []AccessLog `json:"logs"`
}

// UniqueIPs returns the distinct IPs in first-seen order.
func (u *UserAccessLogs) UniqueIPs() []string {
	seen := make(map[string]struct{}, len(u.Logs))
	ips := make([]string, 0, len(u.Logs))
	for _, l := range u.Logs {
		if l.IP == "" {
			continue
		}
		if _, ok := seen[l.IP]; ok {
			continue
		}
		seen[l.IP] = struct{}{}
		ips = append(ips, l.IP)
	}
	return ips
}

// SortedByTimeDesc returns a copy of the logs, newest first.
func (u *UserAccessLogs) SortedByTimeDesc() []AccessLog {
	out := make([]AccessLog, len(u.Logs))
	copy(out, u.Logs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.After(out[j].Time)
	})
	return out
}

// GeoInfo is the geolocation record returned for one IP.
type GeoInfo struct {
	Query       string  `json:"query"`
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	ASName      string  `json:"asname"`
	AS          string  `json:"as"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	CountryCode string  `json:"countryCode"`
	Mobile      bool    `json:"mobile"`
	Proxy       bool    `json:"proxy"`
	Hosting     bool    `json:"hosting"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
}

// OK reports whether the provider resolved the IP.
func (g GeoInfo) OK() bool {
	return g.Status == "" || g.Status == "success"
}
