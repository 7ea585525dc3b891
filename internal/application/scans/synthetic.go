package scans

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
)

// syntheticDetections are engine results used for flagged test-mode reports.
var syntheticDetections = []string{
	"Trojan.GenericKD.Test",
	"Win32.Virus.Sample",
	"Adware.Bundler.Test",
	"Phishing.Page.Test",
	"Suspicious.Heuristic",
	"Spyware.Agent.Test",
}

var defaultSynthetic = NewSynthetic(0)

// Synthetic builds fake provider reports for offline use.
type Synthetic struct {
	mu         sync.Mutex
	randSource *rand.Rand
}

// NewSynthetic creates a generator. seed 0 picks a time-based seed.
func NewSynthetic(seed int64) *Synthetic {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// dedicated random source, jangan pakai global rand
	return &Synthetic{randSource: rand.New(rand.NewSource(seed))}
}

// Report produces a random but internally consistent detection report.
// Roughly half are harmless, the rest split between suspicious and malicious.
func (g *Synthetic) Report() domain.RawDetectionReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := 60 + g.randSource.Intn(11)
	var malicious, suspicious int
	switch roll := g.randSource.Intn(4); roll {
	case 0:
		malicious = 1 + g.randSource.Intn(20)
		suspicious = g.randSource.Intn(4)
	case 1:
		suspicious = 1 + g.randSource.Intn(5)
	}
	harmless := g.randSource.Intn(total - malicious - suspicious + 1)
	undetected := total - malicious - suspicious - harmless

	engines := make(map[string]domain.EngineResult, total)
	n := 0
	add := func(count int, category string, result func() string) {
		for range count {
			n++
			engines[fmt.Sprintf("TestEngine-%02d", n)] = domain.EngineResult{Category: category, Result: result()}
		}
	}
	pick := func() string { return syntheticDetections[g.randSource.Intn(len(syntheticDetections))] }
	add(malicious, "malicious", pick)
	add(suspicious, "suspicious", func() string { return "Suspicious.Heuristic" })
	add(harmless, "harmless", func() string { return "clean" })
	add(undetected, "undetected", func() string { return "" })

	return domain.RawDetectionReport{
		ID: "test-" + uuid.NewString(),
		Stats: domain.DetectionStats{
			Harmless:   harmless,
			Malicious:  malicious,
			Suspicious: suspicious,
			Undetected: undetected,
		},
		Engines: engines,
	}
}

// Result maps a fresh synthetic report and marks it as test data.
func (g *Synthetic) Result(target domain.Target, mode domain.Mode, at time.Time) domain.ScanResult {
	res := domain.MapReport(g.Report(), target, mode, at)
	res.ID = domain.ScanID(uuid.NewString())
	res.VTReportID = ""
	res.IsTestData = true
	return res
}
