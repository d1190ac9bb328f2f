package s1_universe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/fwtrader/internal/clock"
	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/pkg/logger"
)

// ErrNoSources is returned when the builder has nothing to fetch from
var ErrNoSources = errors.New("universe has no sources")

// Config holds universe refresh settings
type Config struct {
	Cadence clock.Cadence // nil = 매 사이클 갱신
	Timeout time.Duration // 소스별 Fetch 타임아웃, 0 = 무제한
	Exclude []string      // 항상 제외할 자산
}

// Builder refreshes the tradable asset set from one or more sources
// ⭐ SSOT: Universe 생성은 여기서만
type Builder struct {
	sources     []contracts.UniverseSource
	config      Config
	exclude     map[string]struct{}
	logger      *logger.Logger
	lastRefresh time.Time
	lastAssets  []string // 캐시는 빌더 자신의 마지막 결과 (Context 상태와 무관)
}

// NewBuilder creates a universe builder
func NewBuilder(sources []contracts.UniverseSource, config Config, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	exclude := make(map[string]struct{}, len(config.Exclude))
	for _, a := range config.Exclude {
		exclude[strings.TrimSpace(a)] = struct{}{}
	}
	return &Builder{
		sources: sources,
		config:  config,
		exclude: exclude,
		logger:  log.WithComponent("universe"),
	}
}

// Refresh returns this cycle's universe
// previous는 Context에 저장된 직전 유니버스 (Added/Removed 계산용)
func (b *Builder) Refresh(ctx context.Context, now time.Time, previous []string) (*contracts.UniverseSnapshot, error) {
	if len(b.sources) == 0 {
		return nil, ErrNoSources
	}

	// cadence 미도래 → 이전 목록 재사용
	if b.config.Cadence != nil && len(b.lastAssets) > 0 && !b.config.Cadence.Due(b.lastRefresh, now) {
		assets := make([]string, len(b.lastAssets))
		copy(assets, b.lastAssets)
		return &contracts.UniverseSnapshot{
			Assets:      assets,
			RefreshedAt: b.lastRefresh,
			Cached:      true,
		}, nil
	}

	seen := make(map[string]struct{})
	assets := make([]string, 0)
	for _, src := range b.sources {
		fetched, err := b.fetch(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("universe source %s: %w", src.Name(), err)
		}

		for _, a := range fetched {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			if _, skip := b.exclude[a]; skip {
				continue
			}
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			assets = append(assets, a)
		}
	}

	added, removed := Diff(previous, assets)
	// 빈 결과는 캐시하지 않음: 다음 사이클에서 다시 조회
	b.lastAssets = assets
	if len(assets) > 0 {
		b.lastRefresh = now
	}

	b.logger.WithFields(map[string]interface{}{
		"assets":  len(assets),
		"added":   len(added),
		"removed": len(removed),
	}).Debug("Universe refreshed")

	return &contracts.UniverseSnapshot{
		Assets:      assets,
		Added:       added,
		Removed:     removed,
		RefreshedAt: now,
	}, nil
}

func (b *Builder) fetch(ctx context.Context, src contracts.UniverseSource) ([]string, error) {
	if b.config.Timeout <= 0 {
		return src.Fetch(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()
	return src.Fetch(callCtx)
}

// Diff returns assets added to and removed from previous (both sorted)
func Diff(previous, current []string) (added, removed []string) {
	prev := make(map[string]struct{}, len(previous))
	for _, a := range previous {
		prev[a] = struct{}{}
	}
	cur := make(map[string]struct{}, len(current))
	for _, a := range current {
		cur[a] = struct{}{}
		if _, ok := prev[a]; !ok {
			added = append(added, a)
		}
	}
	for _, a := range previous {
		if _, ok := cur[a]; !ok {
			removed = append(removed, a)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
