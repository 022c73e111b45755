package services

import "time"

// Progress is emitted once per terminal task.
type Progress struct {
	Label      string
	LabelDone  int
	LabelTotal int
	Done       int
	Total      int
	Err        error
}

// Reporter receives scheduler progress. Implementations must be safe for
// concurrent use; events arrive from fetch goroutines.
type Reporter interface {
	BatchStarted(total int)
	ItemCompleted(p Progress)
	// LabelCompleted fires when every task sharing label is terminal.
	LabelCompleted(label string, failed int)
	BatchFinished(succeeded, failed int)
}

// Recorder collects timing measurements for bench reports.
type Recorder interface {
	ScrapeFinished(d time.Duration)
	ChapterDiscovered(d time.Duration)
	ChapterSkipped()
	PageDownloaded(d time.Duration, bytes int)
	PageSkipped()
}

type NopReporter struct{}

func (NopReporter) BatchStarted(int)           {}
func (NopReporter) ItemCompleted(Progress)     {}
func (NopReporter) LabelCompleted(string, int) {}
func (NopReporter) BatchFinished(int, int)     {}

type NopRecorder struct{}

func (NopRecorder) ScrapeFinished(time.Duration)      {}
func (NopRecorder) ChapterDiscovered(time.Duration)   {}
func (NopRecorder) ChapterSkipped()                   {}
func (NopRecorder) PageDownloaded(time.Duration, int) {}
func (NopRecorder) PageSkipped()                      {}
