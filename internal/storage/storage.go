package storage

import (
	"context"

	"campusLedger/internal/model"
)

// EventSink stores decoded contract events.
type EventSink interface {
	PutEvents(ctx context.Context, events []model.EventRecord) error
}

// JournalSink stores write journal entries.
type JournalSink interface {
	PutJournal(ctx context.Context, entries []model.JournalEntry) error
}

// Fanout writes to every configured sink in order and stops at the first error.
type Fanout struct {
	events   []EventSink
	journals []JournalSink
}

// NewFanout groups sinks; nil sinks are skipped.
func NewFanout(sinks ...interface{}) *Fanout {
	f := &Fanout{}
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if s, ok := sink.(EventSink); ok {
			f.events = append(f.events, s)
		}
		if s, ok := sink.(JournalSink); ok {
			f.journals = append(f.journals, s)
		}
	}
	return f
}

// Empty reports whether no sink was configured.
func (f *Fanout) Empty() bool {
	return len(f.events) == 0 && len(f.journals) == 0
}

func (f *Fanout) PutEvents(ctx context.Context, events []model.EventRecord) error {
	for _, sink := range f.events {
		if err := sink.PutEvents(ctx, events); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) PutJournal(ctx context.Context, entries []model.JournalEntry) error {
	for _, sink := range f.journals {
		if err := sink.PutJournal(ctx, entries); err != nil {
			return err
		}
	}
	return nil
}
