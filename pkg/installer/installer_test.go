package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romcellar/romcellar/pkg/download"
	"github.com/romcellar/romcellar/pkg/progress"
	"github.com/romcellar/romcellar/pkg/safepath"
)

type fakeStore struct {
	calls   int
	id      string
	dir     string
	primary string
	err     error
}

func (s *fakeStore) MarkInstalled(id, dir, primary string) error {
	s.calls++
	s.id, s.dir, s.primary = id, dir, primary
	return s.err
}

type eventLog struct {
	events []progress.Event
}

func (l *eventLog) Progress(e progress.Event) {
	l.events = append(l.events, e)
}

func (l *eventLog) assertFull(t *testing.T) {
	t.Helper()

	require.NotEmpty(t, l.events)

	last := 0
	for _, e := range l.events {
		assert.GreaterOrEqual(t, e.Percent, last)
		assert.LessOrEqual(t, e.Percent, 100)
		last = e.Percent
	}

	assert.Equal(t, 100, last)
}

func zipRaw(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func serveFile(t *testing.T, body []byte) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}

func TestRunSingleFile(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 4096)
	server := serveFile(t, payload)
	defer server.Close()

	root := t.TempDir()
	store := &fakeStore{}
	inst := New(&Options{Store: store})
	defer inst.Close()

	sink := &eventLog{}
	outcome := inst.Run(context.Background(), &Request{
		GameID:          "smw",
		GameName:        "Super Mario World",
		URL:             server.URL + "/smw.sfc",
		DestinationRoot: root,
		FileName:        "smw.sfc",
		AutoExtract:     true,
	}, sink)

	require.Equal(t, Installed, outcome.Result)
	require.NoError(t, outcome.Reason)

	dir := filepath.Join(root, "smw")
	assert.Equal(t, dir, outcome.InstallDir)
	assert.Equal(t, filepath.Join(dir, "smw.sfc"), outcome.PrimaryPath)

	got, err := os.ReadFile(filepath.Join(dir, "smw.sfc"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, "smw", store.id)
	assert.Equal(t, dir, store.dir)
	assert.Equal(t, outcome.PrimaryPath, store.primary)

	sink.assertFull(t)
}

func TestRunContainer(t *testing.T) {
	files := map[string][]byte{
		"disc1.rom": bytes.Repeat([]byte{0x01}, 100),
		"disc2.rom": bytes.Repeat([]byte{0x02}, 200),
		"disc3.rom": bytes.Repeat([]byte{0x03}, 300),
		"disc4.rom": bytes.Repeat([]byte{0x04}, 400),
		"disc5.rom": bytes.Repeat([]byte{0x05}, 500),
	}
	server := serveFile(t, zipRaw(t, files))
	defer server.Close()

	root := t.TempDir()
	store := &fakeStore{}
	inst := New(&Options{Store: store})
	defer inst.Close()

	sink := &eventLog{}
	outcome := inst.Run(context.Background(), &Request{
		GameID:           "pack",
		URL:              server.URL + "/pack.zip",
		DestinationRoot:  root,
		FileName:         "pack.zip",
		HasMultipleFiles: true,
	}, sink)

	require.Equal(t, Installed, outcome.Result)

	dir := filepath.Join(root, "pack")
	assert.ElementsMatch(t,
		[]string{"disc1.rom", "disc2.rom", "disc3.rom", "disc4.rom", "disc5.rom"},
		dirNames(t, dir))

	assert.NoFileExists(t, filepath.Join(dir, "pack.zip"))
	assert.Equal(t, filepath.Join(dir, "disc5.rom"), outcome.PrimaryPath)
	assert.Equal(t, 1, store.calls)

	sink.assertFull(t)
}

func TestRunContainerWithoutArchiveName(t *testing.T) {
	body := zipRaw(t, map[string][]byte{"a.rom": []byte{0x01}, "b.rom": []byte{0x02}})
	server := serveFile(t, body)
	defer server.Close()

	root := t.TempDir()
	inst := New(nil)
	defer inst.Close()

	outcome := inst.Run(context.Background(), &Request{
		GameID:           "duo",
		URL:              server.URL + "/duo.bin",
		DestinationRoot:  root,
		FileName:         "duo.bin",
		HasMultipleFiles: true,
	}, nil)

	require.Equal(t, Installed, outcome.Result)

	// staged as duo.bin.zip so the wrapper never collides with the payload
	dir := filepath.Join(root, "duo")
	assert.ElementsMatch(t, []string{"a.rom", "b.rom"}, dirNames(t, dir))
}

func TestRunAutoExtract(t *testing.T) {
	body := zipRaw(t, map[string][]byte{"hack.smc": []byte("patched rom")})
	server := serveFile(t, body)
	defer server.Close()

	root := t.TempDir()
	inst := New(nil)
	defer inst.Close()

	outcome := inst.Run(context.Background(), &Request{
		GameID:          "hack",
		URL:             server.URL + "/hack.zip",
		DestinationRoot: root,
		FileName:        "hack.zip",
		AutoExtract:     true,
	}, nil)

	require.Equal(t, Installed, outcome.Result)

	dir := filepath.Join(root, "hack")
	assert.Equal(t, []string{"hack.smc"}, dirNames(t, dir))
}

func TestRunAutoExtractDisabled(t *testing.T) {
	body := zipRaw(t, map[string][]byte{"hack.smc": []byte("patched rom")})
	server := serveFile(t, body)
	defer server.Close()

	root := t.TempDir()
	inst := New(nil)
	defer inst.Close()

	outcome := inst.Run(context.Background(), &Request{
		GameID:          "hack",
		URL:             server.URL + "/hack.zip",
		DestinationRoot: root,
		FileName:        "hack.zip",
	}, nil)

	require.Equal(t, Installed, outcome.Result)

	dir := filepath.Join(root, "hack")
	assert.Equal(t, []string{"hack.zip"}, dirNames(t, dir))
	assert.Equal(t, filepath.Join(dir, "hack.zip"), outcome.PrimaryPath)
}

func TestRunDiskImageNotExtracted(t *testing.T) {
	body := zipRaw(t, map[string][]byte{"track.rom": []byte("sector data")})
	server := serveFile(t, body)
	defer server.Close()

	root := t.TempDir()
	inst := New(nil)
	defer inst.Close()

	outcome := inst.Run(context.Background(), &Request{
		GameID:          "game",
		URL:             server.URL + "/game.iso",
		DestinationRoot: root,
		FileName:        "game.iso",
		AutoExtract:     true,
	}, nil)

	require.Equal(t, Installed, outcome.Result)

	dir := filepath.Join(root, "game")
	assert.Equal(t, []string{"game.iso"}, dirNames(t, dir))
	assert.Equal(t, filepath.Join(dir, "game.iso"), outcome.PrimaryPath)
}

func TestRunPrimaryByExtension(t *testing.T) {
	body := zipRaw(t, map[string][]byte{
		"game.cue": []byte("FILE \"game.bin\" BINARY"),
		"game.bin": bytes.Repeat([]byte{0x5A}, 4096),
	})
	server := serveFile(t, body)
	defer server.Close()

	root := t.TempDir()
	inst := New(nil)
	defer inst.Close()

	outcome := inst.Run(context.Background(), &Request{
		GameID:           "rrt4",
		URL:              server.URL + "/rrt4.zip",
		DestinationRoot:  root,
		FileName:         "rrt4.zip",
		HasMultipleFiles: true,
		Extensions:       []string{".cue", ".bin"},
	}, nil)

	require.Equal(t, Installed, outcome.Result)
	assert.Equal(t, filepath.Join(root, "rrt4", "game.cue"), outcome.PrimaryPath)
}

func TestRunNestedArchives(t *testing.T) {
	bonus := zipRaw(t, map[string][]byte{"bonus.rom": []byte("hidden level")})
	data := zipRaw(t, map[string][]byte{"bonus.zip": bonus})
	outer := zipRaw(t, map[string][]byte{"data.zip": data})

	server := serveFile(t, outer)
	defer server.Close()

	root := t.TempDir()
	inst := New(nil)
	defer inst.Close()

	sink := &eventLog{}
	outcome := inst.Run(context.Background(), &Request{
		GameID:           "collection",
		URL:              server.URL + "/collection.zip",
		DestinationRoot:  root,
		FileName:         "collection.zip",
		HasMultipleFiles: true,
	}, sink)

	require.Equal(t, Installed, outcome.Result)

	dir := filepath.Join(root, "collection")
	assert.Equal(t, []string{"bonus.rom"}, dirNames(t, dir))

	got, err := os.ReadFile(filepath.Join(dir, "bonus.rom"))
	require.NoError(t, err)
	assert.Equal(t, "hidden level", string(got))

	sink.assertFull(t)
}

func TestRunNoDestination(t *testing.T) {
	store := &fakeStore{}
	inst := New(&Options{Store: store})
	defer inst.Close()

	outcome := inst.Run(context.Background(), &Request{
		GameID:   "smw",
		URL:      "http://127.0.0.1:1/smw.sfc",
		FileName: "smw.sfc",
	}, nil)

	require.Equal(t, Failed, outcome.Result)
	assert.ErrorIs(t, outcome.Reason, ErrNoDestination)
	assert.Zero(t, store.calls)
}

func TestRunTraversalFileName(t *testing.T) {
	store := &fakeStore{}
	inst := New(&Options{Store: store})
	defer inst.Close()

	outcome := inst.Run(context.Background(), &Request{
		GameID:          "evil",
		URL:             "http://127.0.0.1:1/evil.zip",
		DestinationRoot: t.TempDir(),
		FileName:        "../evil.zip",
	}, nil)

	require.Equal(t, Failed, outcome.Result)
	assert.ErrorIs(t, outcome.Reason, safepath.ErrTraversal)
	assert.Zero(t, store.calls)
}

func TestRunHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	root := t.TempDir()
	store := &fakeStore{}
	inst := New(&Options{Store: store})
	defer inst.Close()

	outcome := inst.Run(context.Background(), &Request{
		GameID:          "smw",
		URL:             server.URL + "/smw.sfc",
		DestinationRoot: root,
		FileName:        "smw.sfc",
	}, nil)

	require.Equal(t, Failed, outcome.Result)

	var statusErr *download.StatusError
	require.ErrorAs(t, outcome.Reason, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)

	assert.NoFileExists(t, filepath.Join(root, "smw", "smw.sfc"))
	assert.Zero(t, store.calls)
}

func TestRunStoreFailure(t *testing.T) {
	server := serveFile(t, []byte("rom data"))
	defer server.Close()

	store := &fakeStore{err: os.ErrPermission}
	inst := New(&Options{Store: store})
	defer inst.Close()

	outcome := inst.Run(context.Background(), &Request{
		GameID:          "smw",
		URL:             server.URL + "/smw.sfc",
		DestinationRoot: t.TempDir(),
		FileName:        "smw.sfc",
	}, nil)

	require.Equal(t, Failed, outcome.Result)
	assert.ErrorIs(t, outcome.Reason, os.ErrPermission)
	assert.Contains(t, outcome.Reason.Error(), "record install state")
}

func TestRunCancelledMidDownload(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(2<<20))
		_, _ = w.Write(make([]byte, 512*1024))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	root := t.TempDir()
	store := &fakeStore{}
	inst := New(&Options{Store: store})
	defer inst.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	sink := progress.SinkFunc(func(e progress.Event) {
		if e.Percent > 0 {
			once.Do(cancel)
		}
	})

	outcome := inst.Run(ctx, &Request{
		GameID:          "big",
		URL:             server.URL + "/big.bin",
		DestinationRoot: root,
		FileName:        "big.bin",
	}, sink)

	require.Equal(t, Cancelled, outcome.Result)
	assert.NoError(t, outcome.Reason)
	assert.Zero(t, store.calls)

	info, err := os.Stat(filepath.Join(root, "big", "big.bin"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCloseCancelsRun(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(2<<20))
		_, _ = w.Write(make([]byte, 512*1024))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	store := &fakeStore{}
	inst := New(&Options{Store: store})

	var once sync.Once
	sink := progress.SinkFunc(func(e progress.Event) {
		if e.Percent > 0 {
			once.Do(func() {
				assert.NoError(t, inst.Close())
			})
		}
	})

	outcome := inst.Run(context.Background(), &Request{
		GameID:          "big",
		URL:             server.URL + "/big.bin",
		DestinationRoot: t.TempDir(),
		FileName:        "big.bin",
	}, sink)

	require.Equal(t, Cancelled, outcome.Result)
	assert.Zero(t, store.calls)

	assert.NoError(t, inst.Close())
}

func TestRunIdempotent(t *testing.T) {
	body := zipRaw(t, map[string][]byte{"hack.smc": []byte("patched rom")})
	server := serveFile(t, body)
	defer server.Close()

	root := t.TempDir()
	store := &fakeStore{}
	inst := New(&Options{Store: store})
	defer inst.Close()

	req := &Request{
		GameID:          "hack",
		URL:             server.URL + "/hack.zip",
		DestinationRoot: root,
		FileName:        "hack.zip",
		AutoExtract:     true,
	}

	first := inst.Run(context.Background(), req, nil)
	require.Equal(t, Installed, first.Result)

	second := inst.Run(context.Background(), req, nil)
	require.Equal(t, Installed, second.Result)
	assert.Equal(t, first.InstallDir, second.InstallDir)

	got, err := os.ReadFile(filepath.Join(root, "hack", "hack.smc"))
	require.NoError(t, err)
	assert.Equal(t, "patched rom", string(got))

	assert.Equal(t, 2, store.calls)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "installed", Installed.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "downloading", StageDownloading.String())
}
