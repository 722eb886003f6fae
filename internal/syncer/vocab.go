package syncer

import (
	"fmt"

	"huddle/internal/entities"
	"huddle/internal/storage"
)

// 会议内部使用的状态值 / Status values as the meeting shows them
const (
	OnTrack    = "on-track"
	OffTrack   = "off-track"
	Complete   = "complete"
	Incomplete = "incomplete"
	Open       = "open"
	Solved     = "solved"
)

type vocabulary struct {
	baseline string
	// local -> stored
	pairs map[string]string
}

// 固定映射表，读写两个方向使用同一张表
// Fixed tables; both directions read the same pairs
var vocabularies = map[string]vocabulary{
	storage.CollectionRocks: {
		baseline: OnTrack,
		pairs: map[string]string{
			OnTrack:  entities.RockOnTrack,
			OffTrack: entities.RockOffTrack,
			Complete: entities.RockCompleted,
		},
	},
	storage.CollectionTodos: {
		baseline: Incomplete,
		pairs: map[string]string{
			Incomplete: entities.TodoNew,
			Complete:   entities.TodoCompleted,
		},
	},
	storage.CollectionIssues: {
		baseline: Open,
		pairs: map[string]string{
			Open:   entities.IssueOpen,
			Solved: entities.IssueSolved,
		},
	},
}

// Syncable reports whether the collection carries a status vocabulary.
func Syncable(collection string) bool {
	_, ok := vocabularies[collection]
	return ok
}

// Baseline 返回集合的默认本地状态 / Baseline is the local status shown before any override
func Baseline(collection string) string {
	return vocabularies[collection].baseline
}

// ToStore 将本地状态翻译为存储值 / ToStore translates a local status for writing
func ToStore(collection, local string) (string, error) {
	vocab, ok := vocabularies[collection]
	if !ok {
		return "", fmt.Errorf("no status vocabulary for %q", collection)
	}
	stored, ok := vocab.pairs[local]
	if !ok {
		return "", fmt.Errorf("unknown %s status %q", entities.Kind(collection), local)
	}
	return stored, nil
}

// ToLocal 将存储值翻译为本地状态，未知值回退到 baseline
// ToLocal translates a stored status for display; unknown values fall back to the baseline
func ToLocal(collection, raw string) string {
	vocab, ok := vocabularies[collection]
	if !ok {
		return ""
	}
	for local, stored := range vocab.pairs {
		if stored == raw {
			return local
		}
	}
	return vocab.baseline
}

// LocalStatuses 返回可选的本地状态，按展示顺序
// LocalStatuses lists the selectable local statuses in display order
func LocalStatuses(collection string) []string {
	switch collection {
	case storage.CollectionRocks:
		return []string{OnTrack, OffTrack, Complete}
	case storage.CollectionTodos:
		return []string{Incomplete, Complete}
	case storage.CollectionIssues:
		return []string{Open, Solved}
	}
	return nil
}
