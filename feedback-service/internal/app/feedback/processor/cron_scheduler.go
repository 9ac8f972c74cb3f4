package processor

import (
	"context"
	"log"

	"safescore/feedback-service/internal/app/feedback/service"

	"github.com/robfig/cron/v3"
)

// CronScheduler периодически запускает адаптацию весов скоринга,
// чтобы таблица подстраивалась и без потока новых одобренных отправок
type CronScheduler struct {
	cron    *cron.Cron
	adapter service.WeightAdapter
}

func NewCronScheduler(adapter service.WeightAdapter) *CronScheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(log.Default())))

	return &CronScheduler{
		cron:    c,
		adapter: adapter,
	}
}

func (s *CronScheduler) Start(ctx context.Context, schedule string) error {
	log.Printf("Starting cron scheduler with schedule: %s", schedule)

	_, err := s.cron.AddFunc(schedule, func() {
		log.Println("Cron job triggered: adapting scoring weights")

		if err := s.adapter.AdaptWeights(ctx); err != nil {
			log.Printf("ERROR: Failed to adapt scoring weights: %v", err)
		} else {
			log.Println("Cron job completed: scoring weights adapted")
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	log.Println("Cron scheduler started")

	log.Println("Performing initial weight adaptation...")
	if err := s.adapter.AdaptWeights(ctx); err != nil {
		log.Printf("WARNING: Failed initial weight adaptation: %v", err)
	} else {
		log.Println("Initial weight adaptation completed")
	}

	return nil
}

func (s *CronScheduler) Stop() {
	log.Println("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Cron scheduler stopped")
}

func (s *CronScheduler) GetEntries() []cron.Entry {
	return s.cron.Entries()
}
