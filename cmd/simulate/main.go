package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/cat-engine/internal/config"
	"github.com/yourusername/cat-engine/internal/domain/entity"
	"github.com/yourusername/cat-engine/internal/irt"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
	"github.com/yourusername/cat-engine/internal/service"
)

type outcome struct {
	trueAbility float64
	estimate    float64
	sem         float64
	items       int
}

// lockedRand serializes a shared *rand.Rand across session goroutines.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) NormFloat64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.NormFloat64()
}

func main() {
	configPath := flag.String("config", "", "optional config file for the CAT defaults")
	examinees := flag.Int("examinees", 200, "number of simulated examinees")
	poolSize := flag.Int("items", 120, "size of the generated item pool")
	workers := flag.Int("workers", 16, "sessions run in parallel")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	log, err := logger.New("development", "")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	defaults := entity.DefaultCATConfig()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatal("Failed to load config", "error", err)
		}
		defaults = cfg.CAT
	}

	rng := &lockedRand{r: rand.New(rand.NewSource(*seed))}
	engine, err := service.NewCATEngine(defaults, service.CATEngineDeps{
		Random: rng.Float64,
		Logger: log.Component("simulate"),
	})
	if err != nil {
		log.Fatal("Failed to create CAT engine", "error", err)
	}

	pool := generatePool(*poolSize, rng)
	results := make([]outcome, *examinees)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*workers)
	for i := 0; i < *examinees; i++ {
		theta := irt.ClampAbility(rng.NormFloat64())
		g.Go(func() error {
			res, err := runExaminee(ctx, engine, pool, fmt.Sprintf("sim-%04d", i), theta, rng)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal("Simulation failed", "error", err)
	}

	report(log, engine, results)
}

// generatePool spreads difficulty tiers and categories over the pool.
func generatePool(n int, rng *lockedRand) []entity.Question {
	categories := []string{"algebra", "geometry", "statistics"}
	kinds := []string{entity.QuestionTypeMultipleChoice, "short_answer"}
	pool := make([]entity.Question, n)
	for i := range pool {
		pool[i] = entity.Question{
			ID:         fmt.Sprintf("item-%03d", i),
			Difficulty: int(rng.Float64()*5) + 1,
			Content:    entity.QuestionContent{Type: kinds[i%len(kinds)]},
			Categories: entity.StringArray{categories[i%len(categories)]},
		}
	}
	return pool
}

func runExaminee(ctx context.Context, engine *service.CATEngine, pool []entity.Question, participant string, theta float64, rng *lockedRand) (outcome, error) {
	session, err := engine.StartSession(ctx, service.StartSessionRequest{
		AssessmentID:  "simulation",
		ParticipantID: participant,
		Attempt:       1,
		Questions:     pool,
	})
	if err != nil {
		return outcome{}, err
	}

	for {
		itemID, ok, err := engine.GetNextItem(ctx, session.ID)
		if err != nil {
			return outcome{}, err
		}
		if !ok {
			break
		}
		params, err := engine.GetItemParameters(itemID)
		if err != nil {
			return outcome{}, err
		}
		p := irt.Probability(params, theta, session.Config.Model)
		resp := entity.Response{
			IsCorrect:      rng.Float64() < p,
			ResponseTimeMs: 20000 + int64(rng.Float64()*40000),
		}
		if _, err := engine.ProcessResponse(ctx, session.ID, itemID, resp); err != nil {
			return outcome{}, err
		}
	}

	final, err := engine.GetSession(session.ID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		trueAbility: theta,
		estimate:    final.CurrentAbility,
		sem:         final.SEM,
		items:       len(final.Administered),
	}, nil
}

func report(log *logger.Logger, engine *service.CATEngine, results []outcome) {
	var bias, sq, semSum, items float64
	for _, r := range results {
		d := r.estimate - r.trueAbility
		bias += d
		sq += d * d
		semSum += r.sem
		items += float64(r.items)
	}
	n := float64(len(results))
	if n == 0 {
		return
	}
	log.Info("Simulation finished",
		"examinees", len(results),
		"bias", bias/n,
		"rmse", math.Sqrt(sq/n),
		"mean_sem", semSum/n,
		"mean_items", items/n)

	snap, err := engine.GetExposureRates(context.Background())
	if err != nil {
		log.Warn("Failed to read exposure counters", "error", err)
		return
	}
	rates := make([]float64, 0, len(snap.Rates))
	for _, r := range snap.Rates {
		rates = append(rates, r)
	}
	if len(rates) == 0 {
		return
	}
	sort.Float64s(rates)
	log.Info("Item exposure",
		"items_used", len(rates),
		"min_rate", rates[0],
		"median_rate", rates[len(rates)/2],
		"max_rate", rates[len(rates)-1])
}
