// Package sheet renders enriched access logs as xlsx spreadsheets.
package sheet

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kimhsiao/recordkit/internal/models"
)

// Period is the day/night classification of an access.
type Period string

const (
	PeriodDay   Period = "Diurno"
	PeriodNight Period = "Noturno"
)

// Headers are the column titles, in column order.
var Headers = []string{
	"Alvo",
	"IP",
	"ISO_Date",
	"Data",
	"Dia da semana",
	"Data fuso",
	"IP_dono",
	"IP_AS",
	"IP_Regiao",
	"IP_Cidade",
	"IP_País",
	"IP_movel",
	"IP_Proxy",
	"IP_Hospedagem",
	"Periodo",
	"Latitude",
	"Longitude",
}

var weekdays = [...]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

const isoLayout = "2006-01-02T15:04:05-07:00"

// Row is one spreadsheet line.
type Row struct {
	Target    string
	IP        string
	ISODate   string
	Date      string
	Weekday   string
	Offset    string
	ASName    string
	AS        string
	Region    string
	City      string
	Country   string
	Mobile    string
	Proxy     string
	Hosting   string
	Period    Period
	Latitude  string
	Longitude string

	at time.Time
}

// Values returns the row cells in Headers order.
func (r Row) Values() []string {
	return []string{
		r.Target, r.IP, r.ISODate, r.Date, r.Weekday, r.Offset,
		r.ASName, r.AS, r.Region, r.City, r.Country,
		r.Mobile, r.Proxy, r.Hosting, string(r.Period),
		r.Latitude, r.Longitude,
	}
}

// PeriodOf classifies a local hour: day is [5, 22).
func PeriodOf(t time.Time) Period {
	if h := t.Hour(); h >= 5 && h < 22 {
		return PeriodDay
	}
	return PeriodNight
}

// Weekday returns the Portuguese weekday name.
func Weekday(t time.Time) string {
	return weekdays[t.Weekday()]
}

func boolCell(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func floatCell(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildRows joins logs with their geolocation, rendering dates in loc.
// Logs whose IP has no geolocation record are skipped. Rows are newest
// first.
func BuildRows(user *models.UserAccessLogs, geo map[string]models.GeoInfo, loc *time.Location) []Row {
	if loc == nil {
		loc = time.Local
	}

	rows := make([]Row, 0, len(user.Logs))
	for _, l := range user.Logs {
		info, ok := geo[l.IP]
		if !ok {
			continue
		}

		ip := l.IP
		if l.Port != "" {
			ip += ":[" + l.Port + "]"
		}
		target := user.Identifier
		if l.Identifier != "" {
			target = l.Identifier
		}

		row := Row{Target: target, IP: ip, at: l.Time}
		// undated entries keep their geolocation but leave the date columns blank
		if !l.Time.IsZero() {
			local := l.Time.In(loc)
			row.ISODate = local.Format(isoLayout)
			row.Date = local.Format("02/01/2006 15:04")
			row.Weekday = Weekday(local)
			row.Offset = "GMT " + local.Format("-0700")
			row.Period = PeriodOf(local)
		}
		row.ASName = info.ASName
		row.AS = info.AS
		row.Region = info.Region
		row.City = info.City
		row.Country = info.CountryCode
		row.Mobile = boolCell(info.Mobile)
		row.Proxy = boolCell(info.Proxy)
		row.Hosting = boolCell(info.Hosting)
		row.Latitude = floatCell(info.Lat)
		row.Longitude = floatCell(info.Lon)
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].at.After(rows[j].at)
	})
	return rows
}

// SheetTitle builds a worksheet name valid for Excel: at most 31
// characters and none of : \ / ? * [ ].
func SheetTitle(service, identifier string) string {
	title := "Logs_" + service + "_" + identifier
	title = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, title)
	runes := []rune(title)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}
