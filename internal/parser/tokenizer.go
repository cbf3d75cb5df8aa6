package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/models"
)

// ServiceHeader is the line that opens the record body.
const ServiceHeader = "Service"

// Page headers repeated by the exporters on every printed page.
var boilerplatePrefixes = []string{
	"WhatsApp Business Record Page",
	"Meta Platforms Business Record",
}

// soloHeaders are section titles that never carry an inline value.
var soloHeaders = map[string]struct{}{
	"Message Log": {},
	"Message":     {},
	"Call Log":    {},
	"Call":        {},
	"Events":      {},
}

// labelFields are always followed by their value on the next line.
var labelFields = map[string]struct{}{
	"Service":               {},
	"Account Type":          {},
	"First Name":            {},
	"First":                 {},
	"Last":                  {},
	"Full Name":             {},
	"IP Address":            {},
	"Location":              {},
	"Enabled":               {},
	"Phone Type":            {},
	"Alternate Name":        {},
	"Middle Name":           {},
	"Last Name":             {},
	"Type":                  {},
	"Alternate Name Type":   {},
	"Card Type":             {},
	"Payment Credential ID": {},
	"Country":               {},
	"Zip":                   {},
	"State":                 {},
	"City":                  {},
	"Street2":               {},
	"Last Street":           {},
	"First Middle":          {},
}

var (
	hexTokenRegex   = regexp.MustCompile(`^[A-F0-9]{6,}$`)
	generatedAtExpr = regexp.MustCompile(`>(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) UTC<`)
)

// IsLabelField reports whether line is a known label.
func IsLabelField(line string) bool {
	_, ok := labelFields[line]
	return ok
}

// VisibleLines returns the trimmed, non-empty text lines of an HTML document
// in document order, skipping script and style content and page boilerplate.
func VisibleLines(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var lines []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			for _, raw := range strings.Split(n.Data, "\n") {
				line := norm.NFC.String(strings.TrimSpace(raw))
				if line == "" || isBoilerplate(line) {
					continue
				}
				lines = append(lines, line)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)

	return lines, nil
}

func isBoilerplate(line string) bool {
	for _, p := range boilerplatePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// GeneratedAt finds the export generation time embedded in the markup.
func GeneratedAt(markup string) (time.Time, bool) {
	m := generatedAtExpr.FindStringSubmatch(markup)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", m[1], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Classify returns the platform family named on the line after "Service".
func Classify(serviceLine string) models.DocumentKind {
	switch {
	case strings.Contains(serviceLine, "WhatsApp"):
		return models.KindMessaging
	case strings.Contains(serviceLine, "Facebook"), strings.Contains(serviceLine, "Instagram"):
		return models.KindSocial
	default:
		return models.KindUnknown
	}
}

// MergeLines re-joins values that the text dump split away from their labels.
func MergeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		current := lines[i]
		if i+1 >= len(lines) {
			out = append(out, current)
			break
		}
		next := lines[i+1]

		if _, ok := soloHeaders[current]; ok {
			out = append(out, current)
			i++
			continue
		}

		if IsLabelField(current) {
			if IsLabelField(next) {
				out = append(out, current)
				i++
				continue
			}
			out = append(out, current+" "+next)
			i += 2
			continue
		}

		if isContinuation(next) {
			out = append(out, current+" "+next)
			i += 2
			continue
		}
		out = append(out, current)
		i++
	}
	return out
}

func isContinuation(next string) bool {
	if hexTokenRegex.MatchString(next) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(next)
	return unicode.IsLower(r) || unicode.IsDigit(r) || r == '+' || r == '@'
}

// TokenizeHTML converts one exported record into its merged line sequence.
func TokenizeHTML(sourcePath string, markup string) (*models.ExportedRecord, error) {
	generated, ok := GeneratedAt(markup)
	if !ok {
		return nil, apperrors.New(apperrors.ErrStructuralParse, "generation timestamp not found in "+sourcePath)
	}

	lines, err := VisibleLines(strings.NewReader(markup))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStructuralParse, "read "+sourcePath, err)
	}

	start := -1
	for i, line := range lines {
		if line == ServiceHeader {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, apperrors.New(apperrors.ErrStructuralParse, "'Service' header not found in "+sourcePath)
	}
	lines = lines[start:]

	rec := &models.ExportedRecord{
		SourcePath:  sourcePath,
		GeneratedAt: generated,
		Kind:        models.KindUnknown,
		Lines:       lines,
		Merged:      MergeLines(lines),
	}
	if len(lines) > 1 {
		rec.Kind = Classify(lines[1])
	}
	return rec, nil
}

// TokenizeFile reads and tokenizes an HTML export from disk.
func TokenizeFile(path string) (*models.ExportedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	if _, err := io.Copy(&b, bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return TokenizeHTML(path, b.String())
}
