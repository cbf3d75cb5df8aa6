package verify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/recordkit/internal/config"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/models"
)

type recordingWriter struct {
	path   string
	report *models.VerificationReport
	err    error
}

func (w *recordingWriter) WriteReport(path string, r *models.VerificationReport) error {
	w.path = path
	w.report = r
	return w.err
}

type memoryStore struct {
	mu       sync.Mutex
	created  []string
	files    map[string][]models.FileReport
	finished map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]models.FileReport), finished: make(map[string]string)}
}

func (s *memoryStore) CreateRun(r *models.VerificationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, r.RunID)
	return nil
}

func (s *memoryStore) AddFileResult(runID string, f models.FileReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[runID] = append(s.files[runID], f)
	return nil
}

func (s *memoryStore) FinishRun(r *models.VerificationReport, markdown string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished[r.RunID] = markdown
	return nil
}

func sum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestVerifier(w ReportWriter, opts ...Option) *Verifier {
	return New(config.Default().Hashing, append([]Option{WithReportWriter(w)}, opts...)...)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"a.zip", "b 10.zip", "b 2.zip", "c.gpg", "laudo.pdf",
		"relatorio_hashes.pdf", "notes.txt", "hashes.txt",
		"sub/d.zip", "sub/hashes.txt", "sub/deep/e.zip",
	} {
		write(t, filepath.Join(root, name), "x")
	}
	sig := []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C, 0x00, 0x04}
	require.NoError(t, os.WriteFile(filepath.Join(root, "evidence.bin"), append(sig, make([]byte, 32)...), 0644))

	d, err := Discover(root)
	require.NoError(t, err)

	var got []string
	for _, c := range d.Candidates {
		rel, _ := filepath.Rel(root, c)
		got = append(got, rel)
	}
	assert.Equal(t, []string{
		"a.zip", "b 2.zip", "b 10.zip", "c.gpg", "evidence.bin", "laudo.pdf",
		filepath.Join("sub", "d.zip"),
	}, got)
	assert.Equal(t, filepath.Join(root, "hashes.txt"), d.ManifestPath)
}

func TestDiscover_VendorPDFWins(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "hashes.txt"), "")
	write(t, filepath.Join(root, "Valores de Hash 01.pdf"), "")

	d, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Valores de Hash 01.pdf"), d.ManifestPath)
	assert.Empty(t, d.Candidates)
}

func TestDiscover_MissingFolder(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestRun_AllVerified(t *testing.T) {
	root := t.TempDir()
	var manifest []string
	for i, name := range []string{"archive.zip", "part 2.zip", "laudo.pdf", "sub/inner.zip"} {
		content := strings.Repeat(name, i+1)
		write(t, filepath.Join(root, name), content)
		manifest = append(manifest, strings.ReplaceAll(filepath.Base(name), " ", "")+":"+sum(content))
	}
	write(t, filepath.Join(root, "hashes.txt"), strings.Join(manifest, "\n"))

	w := &recordingWriter{}
	store := newMemoryStore()
	var progress []int
	v := newTestVerifier(w, WithStore(store), WithProgress(func(done, total int, _ models.FileReport) {
		progress = append(progress, done)
		assert.Equal(t, 4, total)
	}))

	report, err := v.Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 4, report.HashesCount)
	assert.Equal(t, report.HashesCount, report.VerifiedFiles())
	assert.Equal(t, 0, report.Collisions())
	assert.Equal(t, 4, report.Successes())
	assert.False(t, report.MissingFiles())
	assert.Equal(t, models.SHA256, report.Algorithm)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)

	assert.Equal(t, filepath.Join(report.Folder, "relatorio_hashes.pdf"), w.path)
	assert.Same(t, report, w.report)

	require.Equal(t, []string{report.RunID}, store.created)
	assert.Len(t, store.files[report.RunID], 4)
	assert.Contains(t, store.finished[report.RunID], "Arquivos verificados: 4")
}

func TestRun_SingleArchiveVerified(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "archive.zip"), "evidence bytes")
	write(t, filepath.Join(root, "hashes.txt"), "archive.zip:"+sum("evidence bytes")+"\n")

	report, err := newTestVerifier(&recordingWriter{}).Run(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, models.Verified, report.Files[0].Classification)
}

func TestRun_CollisionAndMissingHash(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "good.zip"), "good")
	write(t, filepath.Join(root, "bad.zip"), "tampered")
	write(t, filepath.Join(root, "extra.zip"), "unlisted")
	write(t, filepath.Join(root, "hashes.txt"),
		"good.zip:"+sum("good")+"\nbad.zip:"+sum("original")+"\ngone.zip:"+sum("gone"))

	report, err := newTestVerifier(&recordingWriter{}).Run(context.Background(), root)
	require.NoError(t, err)

	byName := make(map[string]models.FileReport)
	for _, f := range report.Files {
		byName[f.Name] = f
	}
	assert.Equal(t, models.Verified, byName["good.zip"].Classification)
	assert.Equal(t, models.Collision, byName["bad.zip"].Classification)
	assert.Equal(t, sum("original"), byName["bad.zip"].ExpectedHash)
	assert.Equal(t, models.HashNotFound, byName["extra.zip"].Classification)
	assert.Equal(t, models.MissingHashMarker, byName["extra.zip"].ExpectedHash)

	assert.Equal(t, 3, report.HashesCount)
	assert.Equal(t, 3, report.VerifiedFiles())
	assert.Equal(t, 2, report.Collisions())
	assert.Equal(t, 1, report.Successes())
}

func TestRun_UppercaseHashIsCollision(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.zip"), "a")
	write(t, filepath.Join(root, "export.csv"), "id,name,x,y,z,hash\n1,a.zip,0,0,0,"+strings.ToUpper(sum("a"))+"\n")

	report, err := newTestVerifier(&recordingWriter{}).Run(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, models.Collision, report.Files[0].Classification)
}

func TestRun_ManifestMissing(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.zip"), "a")

	_, err := newTestVerifier(&recordingWriter{}).Run(context.Background(), root)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrManifestMissing, apperrors.CodeOf(err))
	assert.Equal(t, 1, apperrors.ExitCode(err))
}

func TestRun_ReportFailureKeepsResults(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.zip"), "a")
	write(t, filepath.Join(root, "hashes.txt"), "a.zip:"+sum("a"))

	w := &recordingWriter{err: os.ErrPermission}
	report, err := newTestVerifier(w).Run(context.Background(), root)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrReportFailed))
	require.NotNil(t, report)
	assert.Equal(t, 1, report.VerifiedFiles())
}

func TestRun_Cancelled(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.zip"), "a")
	write(t, filepath.Join(root, "hashes.txt"), "a.zip:"+sum("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &recordingWriter{}
	_, err := newTestVerifier(w).Run(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, w.path)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "laudo.pdf")
	write(t, path, "content")

	w := &recordingWriter{}
	v := newTestVerifier(w)

	report, err := v.Check(context.Background(), path, sum("content"), models.SHA256)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, models.Verified, report.Files[0].Classification)
	assert.Equal(t, 1, report.HashesCount)
	assert.True(t, strings.HasPrefix(CheckMessage(report.Files[0]), "Hashs são iguais."))
	assert.Equal(t, filepath.Join(dir, "relatorio_hashes.pdf"), w.path)

	report, err = v.Check(context.Background(), path, sum("other"), models.SHA256)
	require.NoError(t, err)
	assert.Equal(t, models.Collision, report.Files[0].Classification)
	assert.True(t, strings.HasPrefix(CheckMessage(report.Files[0]), "As hashes são diferentes."))

	_, err = v.Check(context.Background(), filepath.Join(dir, "nope"), "x", models.SHA256)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func sampleReport() *models.VerificationReport {
	return &models.VerificationReport{
		Folder:      "/evidence",
		HashesCount: 4,
		Files: []models.FileReport{
			{Path: "/evidence/part10.zip", Name: "part10.zip", Classification: models.Verified, ExpectedHash: "aa", ComputedHash: "aa"},
			{Path: "/evidence/part2.zip", Name: "part2.zip", Classification: models.Collision, ExpectedHash: "aa", ComputedHash: "bb"},
			{Path: "/evidence/x.zip", Name: "x.zip", Classification: models.HashNotFound, ExpectedHash: models.MissingHashMarker, ComputedHash: "cc"},
		},
	}
}

func TestSummary(t *testing.T) {
	got := Summary(sampleReport())
	assert.Equal(t, "Quantidade de hashes encontradas: 4\n"+
		"Arquivos verificados: 3\n"+
		"Verificados com sucesso: 1\n"+
		"Quantidade de colisões: 2\n"+
		"\n"+MissingFilesWarning+"\n\n", got)
}

func TestSection(t *testing.T) {
	r := sampleReport()
	assert.Equal(t,
		"[ERRO] - /evidence/part2.zip houve colisão de hash\n      original: aa\n      hash gerada: bb\n\n",
		Section(r.Files[1]))
	assert.Contains(t, Section(r.Files[2]), "não possui hash no arquivo de hashes.txt")
	assert.Contains(t, Section(r.Files[0]), "[OK] - /evidence/part10.zip foi verificado com sucesso")
}

func TestPrintConsole_NaturalOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintConsole(&buf, sampleReport()))
	out := buf.String()

	assert.Less(t, strings.Index(out, "part2.zip"), strings.Index(out, "part10.zip"))
	assert.Less(t, strings.Index(out, "part10.zip"), strings.Index(out, "x.zip"))
	assert.True(t, strings.HasSuffix(out, MissingFilesWarning+"\n\n"))
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleReport())
	assert.Contains(t, md, "| part2.zip | colisão | `aa` | `bb` |")
	assert.Contains(t, md, "| x.zip | sem hash |")
	assert.Contains(t, md, "> "+MissingFilesWarning)
}

func TestProgress(t *testing.T) {
	assert.Equal(t, "Arquivos verificados: 3/7", Progress(3, 7))
}
