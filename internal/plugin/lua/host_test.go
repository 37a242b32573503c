package lua

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
)

// fakePolicy allows what its fields say and records reports.
type fakePolicy struct {
	allowAll
	verseRead bool
	writeDir  string

	mu      sync.Mutex
	reports []string
}

func (p *fakePolicy) AllowVerseRead() bool { return p.verseRead }

func (p *fakePolicy) AllowFileWrite(path string) bool {
	return p.writeDir != "" && filepath.Dir(path) == p.writeDir
}

func (p *fakePolicy) Report(permission, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, permission+": "+message)
}

func (p *fakePolicy) Reports() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.reports...)
}

func newFacade(t *testing.T) *hostapi.Facade {
	t.Helper()
	logger, _ := test.NewNullLogger()
	f := hostapi.NewFacade(logger)
	f.Verses = hostapi.NewVerseSet(hostapi.Verse{
		Book: "John", Chapter: 3, Number: 16, Translation: "KJV",
		Text: "For God so loved the world",
	})
	return f
}

func TestHostVerseReadGate(t *testing.T) {
	policy := &fakePolicy{}
	m := openEcho(t, Options{Facade: newFacade(t), Policy: policy})

	var verse func(string) string
	require.NoError(t, m.Resolve("verse", &verse))

	assert.Panics(t, func() { verse("John 3:16") })
	require.Len(t, policy.Reports(), 1)
	assert.Contains(t, policy.Reports()[0], "verse.read")

	policy.verseRead = true
	assert.Equal(t, "For God so loved the world", verse("John 3:16"))
}

func TestHostWriteFileGate(t *testing.T) {
	dir := t.TempDir()
	policy := &fakePolicy{writeDir: dir}
	m := openEcho(t, Options{Facade: newFacade(t), Policy: policy})

	var save func(string, string) bool
	require.NoError(t, m.Resolve("save", &save))

	target := filepath.Join(dir, "out.txt")
	assert.True(t, save(target, "saved"))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "saved", string(data))

	outside := filepath.Join(t.TempDir(), "out.txt")
	assert.Panics(t, func() { save(outside, "nope") })
	assert.NoFileExists(t, outside)
	assert.Len(t, policy.Reports(), 1)
}

func TestHostPublishSubscribe(t *testing.T) {
	facade := newFacade(t)
	m := openEcho(t, Options{Facade: facade})

	var said []hostapi.Event
	var mu sync.Mutex
	facade.Events.Subscribe("echo.said", func(ev hostapi.Event) {
		mu.Lock()
		said = append(said, ev)
		mu.Unlock()
	})

	var announce func(string)
	require.NoError(t, m.Resolve("announce", &announce))
	announce("grace")

	mu.Lock()
	require.Len(t, said, 1)
	assert.Equal(t, "grace", said[0].Data["text"])
	assert.Equal(t, "EchoPlugin", said[0].Data["source"])
	mu.Unlock()

	var count func() int
	require.NoError(t, m.Resolve("received_count", &count))
	facade.Events.Publish("echo.ping", map[string]string{"msg": "one"})
	facade.Events.Publish("echo.ping", map[string]string{"msg": "two"})
	assert.Eventually(t, func() bool { return count() == 2 }, time.Second, 10*time.Millisecond)
}
