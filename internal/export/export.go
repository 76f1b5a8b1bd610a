// Package export runs batches of expensive, cacheable asset operations.
// A run record in the output root remembers which operations already
// completed; unchanged operations whose outputs still exist are never
// re-executed. Output contents are deliberately not hashed, so a
// hand-edited output stays untouched until the file or its record entry
// is removed.
package export

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Operation is one schedulable unit of work. The name is its cache
// identity: it must be derived from the operation's parameters so that
// equal parameters produce equal names. Output paths are relative to
// the export root and must be disjoint across all operations of one
// run; the scheduler does not enforce this.
type Operation interface {
	Name() string
	OutputPaths() []string
	DependedAssets() []string
	// CPUEstimate rates CPU intensity in [0,1]; 0.5 is the neutral
	// default for work that is neither clearly IO- nor CPU-bound.
	CPUEstimate() float64
	Run(root string, assets AssetResolver) error
}

// AssetResolver resolves an asset identifier to a loaded handle.
type AssetResolver interface {
	Resolve(id string) (any, error)
}

// Scheduler executes operations against one export root.
type Scheduler struct {
	Root    string
	Version string
	Assets  AssetResolver
	Logger  *zap.Logger

	// IOThreads is the baseline concurrency for IO-oriented work.
	// Zero means NumCPU+4.
	IOThreads int
}

// minEstimate floors each operation's estimate so a batch of pure-IO
// operations cannot explode the pool unboundedly.
const minEstimate = 0.2

type task struct {
	op       Operation
	estimate float64
}

// Run plans, executes and commits one batch. Operations already in the
// run record with all outputs present are skipped. Operations whose
// dependency assets fail to preload are skipped for this run and left
// out of the committed record so the next run retries them. A runtime
// failure of one operation is logged and excluded from the record; it
// never aborts the batch.
func (s *Scheduler) Run(ops []Operation) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ioThreads := s.IOThreads
	if ioThreads <= 0 {
		ioThreads = runtime.NumCPU() + 4
	}

	done := readRecord(s.Root, s.Version)

	var stillValid []string
	var todo []task
	var estimateSum float64
	for _, op := range ops {
		name := op.Name()
		if done[name] && outputsExist(s.Root, op.OutputPaths()) {
			stillValid = append(stillValid, name)
			continue
		}
		if !s.preload(logger, op) {
			continue
		}
		est := math.Max(op.CPUEstimate(), minEstimate)
		todo = append(todo, task{op: op, estimate: est})
		estimateSum += est
	}

	completed := stillValid
	if len(todo) > 0 {
		workers := max(1, int(math.Floor(float64(ioThreads)*float64(len(todo))/estimateSum)))
		if workers > len(todo) {
			workers = len(todo)
		}
		ordered := balance(todo)

		logger.Info("export: executing batch",
			zap.Int("operations", len(todo)),
			zap.Int("workers", workers),
			zap.Int("cached", len(stillValid)))

		results := make([]error, len(ordered))
		taskChan := make(chan int, workers*2)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for idx := range taskChan {
					results[idx] = ordered[idx].op.Run(s.Root, s.Assets)
				}
			}()
		}
		for i := range ordered {
			taskChan <- i
		}
		close(taskChan)
		wg.Wait()

		for i, err := range results {
			name := ordered[i].op.Name()
			if err != nil {
				logger.Warn("export: operation failed",
					zap.String("operation", name), zap.Error(err))
				continue
			}
			completed = append(completed, name)
		}
	}

	if recordChanged(done, completed) {
		logger.Info("export: updating cache record", zap.String("file", recordName))
		return writeRecord(s.Root, s.Version, completed)
	}
	return nil
}

// preload synchronously resolves every declared dependency so a running
// operation never blocks on asset loads.
func (s *Scheduler) preload(logger *zap.Logger, op Operation) bool {
	for _, id := range op.DependedAssets() {
		if _, err := s.Assets.Resolve(id); err != nil {
			logger.Warn("export: skipping operation, dependency unavailable",
				zap.String("operation", op.Name()),
				zap.String("asset", id),
				zap.Error(err))
			return false
		}
	}
	return true
}

// balance orders tasks so CPU-heavy and IO-light work are interleaved
// in flight. Tasks are taken alternately from the heavy and light ends
// of the estimate-sorted list; the side being drawn from switches when
// its cumulative estimate exceeds the other side's cumulative estimate
// plus that side's next item.
func balance(todo []task) []task {
	sorted := append([]task(nil), todo...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].estimate > sorted[j].estimate
	})

	ordered := make([]task, 0, len(sorted))
	i, j := 0, len(sorted)-1
	heavySide := true
	var heavySum, lightSum float64
	for i <= j {
		if heavySide {
			ordered = append(ordered, sorted[i])
			heavySum += sorted[i].estimate
			i++
			if i <= j && heavySum > lightSum+sorted[j].estimate {
				heavySide = false
			}
		} else {
			ordered = append(ordered, sorted[j])
			lightSum += sorted[j].estimate
			j--
			if i <= j && lightSum > heavySum+sorted[i].estimate {
				heavySide = true
			}
		}
	}
	return ordered
}

func outputsExist(root string, paths []string) bool {
	for _, p := range paths {
		if !fileExists(root, p) {
			return false
		}
	}
	return true
}

// recordChanged reports whether the committed set differs from the
// prior record, so an all-cached run leaves the sidecar untouched.
func recordChanged(prior map[string]bool, committed []string) bool {
	if len(prior) != len(committed) {
		return true
	}
	for _, name := range committed {
		if !prior[name] {
			return true
		}
	}
	return false
}

func fileExists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, rel))
	return err == nil
}
