package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"huddle/internal/entities"
)

// DerivedIssuePrefix 派生 Issue 名称前缀 / name prefix of derived issues
const DerivedIssuePrefix = "Off-track: "

// DefaultDerivedDescription 派生 Issue 缺省描述 / default derived issue description
const DefaultDerivedDescription = "Created automatically because this rock was marked off-track during the weekly meeting."

// Deriver 为偏离轨道的 Rock 确保存在唯一的 Issue
// Deriver ensures exactly one open issue exists for each off-track rock
type Deriver struct {
	repo   *entities.Repo
	logger *slog.Logger
	// 串行化检查与插入 / serialises check-then-insert
	mu sync.Mutex
}

// NewDeriver creates a Deriver. A nil logger uses slog.Default.
func NewDeriver(repo *entities.Repo, logger *slog.Logger) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deriver{repo: repo, logger: logger}
}

// EnsureIssueForOffTrackRock 查询未归档 Issue，按 sourceRockId 去重后插入
// EnsureIssueForOffTrackRock returns the existing derived issue for rockID or
// creates one. created is false when an issue already referenced the rock.
// Dedup is by sourceRockId only; two rocks with the same title get two issues.
func (d *Deriver) EnsureIssueForOffTrackRock(ctx context.Context, owner entities.Owner, rockID, title, description string) (entities.Issue, bool, error) {
	rockID = strings.TrimSpace(rockID)
	if rockID == "" {
		return entities.Issue{}, false, fmt.Errorf("derive issue: rock id is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	issues, err := d.repo.ListIssues(ctx, owner)
	if err != nil {
		return entities.Issue{}, false, fmt.Errorf("derive issue for rock %s: %w", rockID, err)
	}
	for _, issue := range issues {
		if issue.SourceRockID == rockID {
			return issue, false, nil
		}
	}

	name := strings.TrimSpace(title)
	if name == "" {
		name = "Rock"
	}
	if strings.TrimSpace(description) == "" {
		description = DefaultDerivedDescription
	}
	issue, err := d.repo.CreateIssue(ctx, owner, entities.Issue{
		Name:          DerivedIssuePrefix + name,
		Description:   description,
		Priority:      entities.PriorityMedium,
		Status:        entities.IssueOpen,
		Source:        entities.SourceRock,
		SourceRockID:  rockID,
		CreatedBy:     owner.ID,
		CreatedByName: owner.DisplayName,
	})
	if err != nil {
		return entities.Issue{}, false, fmt.Errorf("derive issue for rock %s: %w", rockID, err)
	}
	d.logger.Info("derived issue created", "rock", rockID, "issue", issue.ID)
	return issue, true, nil
}
