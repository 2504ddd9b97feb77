package bot

// BotStatus is the externally visible state of one worker. Comparable so
// publication can be deduplicated against the last sent value.
type BotStatus struct {
	Name     string
	Role     string
	State    string // "idle", "working", "stopped"
	Task     string
	Progress string
	Queue    int
	HP       int
	MaxHP    int
	Gold     int
	X, Y     int
}

// StatusSink receives worker status and log events. Implementations must
// not block; the worker fires and forgets.
type StatusSink interface {
	BotChanged(s BotStatus)
	BotLog(name, level, message string)
}

type nopSink struct{}

func (nopSink) BotChanged(BotStatus)          {}
func (nopSink) BotLog(string, string, string) {}

type multiSink []StatusSink

// MultiSink fans events out to several sinks in order.
func MultiSink(sinks ...StatusSink) StatusSink { return multiSink(sinks) }

func (m multiSink) BotChanged(s BotStatus) {
	for _, sink := range m {
		sink.BotChanged(s)
	}
}

func (m multiSink) BotLog(name, level, message string) {
	for _, sink := range m {
		sink.BotLog(name, level, message)
	}
}
