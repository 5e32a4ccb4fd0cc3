package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/apexam/assess-backend/internal/cache"
	"github.com/apexam/assess-backend/internal/config"
	"github.com/apexam/assess-backend/internal/database"
	"github.com/apexam/assess-backend/internal/logger"
	"github.com/apexam/assess-backend/internal/model"
	"github.com/apexam/assess-backend/internal/repository"
	"github.com/apexam/assess-backend/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	sessionRepo := repository.NewSessionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	sessionCache := cache.NewRedisSessionCache(rdb, log)
	clock := service.SystemClock{}

	sessionService := service.NewSessionService(sessionRepo, sessionCache, cfg, clock, log)
	resultService := service.NewResultService(resultRepo, sessionRepo, clock, log)

	fmt.Println("=== Seeding 25 Sessions ===")

	assessments := []string{
		"math-placement-01", "reading-comprehension-02", "science-quiz-03",
		"history-midterm-04", "grammar-check-05",
	}

	successCount := 0
	for i := 0; i < 25; i++ {
		studentID := fmt.Sprintf("student-%03d", i+1)
		assessmentID := assessments[i%len(assessments)]

		session, err := sessionService.Create(ctx, studentID, assessmentID)
		if err != nil {
			fmt.Printf("Error creating session for %s: %v\n", studentID, err)
			continue
		}

		// Roughly half the sessions get a submitted result and complete.
		if i%2 == 0 {
			score := float64(rand.Intn(41) + 60)
			timeSpent := rand.Intn(1800) + 300
			response := json.RawMessage(fmt.Sprintf(`{"answers":{"q1":"a","q2":"c"},"attempt":%d}`, i+1))

			if _, err := resultService.Create(ctx, session.ID, response, &score, &timeSpent); err != nil {
				fmt.Printf("Error creating result for session %s: %v\n", session.ID, err)
			} else if _, err := sessionService.UpdateStatus(ctx, session.ID, model.SessionStatusCompleted); err != nil {
				fmt.Printf("Error completing session %s: %v\n", session.ID, err)
			}
		}

		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Created %d sessions...\n", i+1)
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/25 sessions.\n", successCount)
}
