package verify

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/kimhsiao/recordkit/internal/models"
)

const indent = "      "

// MissingFilesWarning is appended to the summary when the manifest
// declares more hashes than files were checked.
const MissingFilesWarning = "** Há arquivos em falta, a quantidade de arquivos verificados foi menor do que a quantidade de hashes encontradas **"

// Summary renders the report header.
func Summary(r *models.VerificationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quantidade de hashes encontradas: %d\n", r.HashesCount)
	fmt.Fprintf(&b, "Arquivos verificados: %d\n", r.VerifiedFiles())
	fmt.Fprintf(&b, "Verificados com sucesso: %d\n", r.Successes())
	fmt.Fprintf(&b, "Quantidade de colisões: %d\n", r.Collisions())
	if r.MissingFiles() {
		b.WriteString("\n" + MissingFilesWarning + "\n\n")
	}
	return b.String()
}

// Headline is the one-line verdict for a file.
func Headline(f models.FileReport) string {
	switch f.Classification {
	case models.Verified:
		return "[OK] - " + f.Path + " foi verificado com sucesso"
	case models.HashNotFound:
		return "[ERRO] - " + f.Path + " não possui hash no arquivo de hashes.txt"
	default:
		return "[ERRO] - " + f.Path + " houve colisão de hash"
	}
}

// Section renders one file entry with both hashes.
func Section(f models.FileReport) string {
	computed := f.ComputedHash
	if computed == "" {
		computed = "None"
	}
	return Headline(f) + "\n" +
		indent + "original: " + f.ExpectedHash + "\n" +
		indent + "hash gerada: " + computed + "\n\n"
}

// Sorted returns the file reports in natural path order.
func Sorted(r *models.VerificationReport) []models.FileReport {
	files := make([]models.FileReport, len(r.Files))
	copy(files, r.Files)
	sort.SliceStable(files, func(i, j int) bool {
		return natural.Less(files[i].Path, files[j].Path)
	})
	return files
}

// PrintConsole writes every section in natural order followed by the summary.
func PrintConsole(w io.Writer, r *models.VerificationReport) error {
	for _, f := range Sorted(r) {
		if _, err := io.WriteString(w, Section(f)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, Summary(r))
	return err
}

// Progress is the console line printed after each file.
func Progress(done, total int) string {
	return fmt.Sprintf("Arquivos verificados: %d/%d", done, total)
}

// RenderMarkdown renders the report for the desktop history view.
func RenderMarkdown(r *models.VerificationReport) string {
	var b strings.Builder
	b.WriteString("# Relatório de hashes\n\n")
	fmt.Fprintf(&b, "- Pasta: `%s`\n", r.Folder)
	if r.ManifestPath != "" {
		fmt.Fprintf(&b, "- Manifesto: `%s` (%s)\n", r.ManifestPath, r.Algorithm)
	}
	fmt.Fprintf(&b, "- Quantidade de hashes encontradas: %d\n", r.HashesCount)
	fmt.Fprintf(&b, "- Arquivos verificados: %d\n", r.VerifiedFiles())
	fmt.Fprintf(&b, "- Verificados com sucesso: %d\n", r.Successes())
	fmt.Fprintf(&b, "- Quantidade de colisões: %d\n", r.Collisions())
	if r.MissingFiles() {
		b.WriteString("\n> " + MissingFilesWarning + "\n")
	}

	b.WriteString("\n| Arquivo | Resultado | Original | Gerada |\n|---|---|---|---|\n")
	for _, f := range Sorted(r) {
		result := "OK"
		switch f.Classification {
		case models.Collision:
			result = "colisão"
		case models.HashNotFound:
			result = "sem hash"
		}
		fmt.Fprintf(&b, "| %s | %s | `%s` | `%s` |\n", mdEscape(f.Name), result, f.ExpectedHash, f.ComputedHash)
	}
	return b.String()
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// CheckMessage is the dialog text for a single-file comparison.
func CheckMessage(f models.FileReport) string {
	verdict := "As hashes são diferentes."
	if f.Classification == models.Verified {
		verdict = "Hashs são iguais."
	}
	return fmt.Sprintf("%s\n\nHash original:\n%s\n\nHash gerada:\n%s", verdict, f.ExpectedHash, f.ComputedHash)
}
