package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"docslot/pkg/client"
	apperrors "docslot/pkg/errors"
	"docslot/pkg/logger"
	"docslot/pkg/model"
)

const JobName = "seed"

func main() {
	_ = godotenv.Load()

	file := flag.String("file", "cmd/seed/doctors.example.toml", "TOML doctor fixture")
	baseURL := flag.String("url", "http://localhost:"+envOr("PORT", "8080"), "scheduler base URL")
	wait := flag.Duration("wait", 30*time.Second, "how long to wait for the scheduler to become healthy")
	flag.Parse()

	log := logger.New(logger.Config{Level: envOr("LOG_LEVEL", logger.INFO), Service: JobName})

	doctors, err := loadFixture(*file)
	if err != nil {
		log.Fatal("Failed to load fixture", "file", *file, "error", err)
	}

	sc := client.NewSchedulerClient(*baseURL, os.Getenv("API_SIGNING_SECRET"), JobName)
	ctx := context.Background()
	if err := sc.HTTP().WaitForHealthy(ctx, *wait); err != nil {
		log.Fatal("Scheduler unreachable", "url", *baseURL, "error", err)
	}

	created, skipped, err := seed(ctx, sc, doctors, log)
	if err != nil {
		log.Fatal("Seeding failed", "created", created, "skipped", skipped, "error", err)
	}
	log.Info("Seeding completed", "created", created, "skipped", skipped)
}

type doctorCreator interface {
	CreateDoctor(ctx context.Context, doctor *model.Doctor) (*model.Doctor, error)
}

// seed creates every doctor. Doctors rejected as duplicates were seeded by an earlier run.
func seed(ctx context.Context, c doctorCreator, doctors []*model.Doctor, log *logger.Logger) (created, skipped int, err error) {
	for _, d := range doctors {
		out, err := c.CreateDoctor(ctx, d)
		var apiErr *client.APIError
		switch {
		case err == nil:
			created++
			log.Info("Doctor created", "doctor_id", out.ID, "name", out.Name)
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict && apiErr.Code == apperrors.CodeConflict:
			skipped++
			log.Info("Doctor already exists", "name", d.Name, "email", d.Email)
		default:
			return created, skipped, err
		}
	}
	return created, skipped, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
