package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"igengage/pkg/instagram"
	"igengage/pkg/logger"
	"igengage/pkg/ratelimit"
)

// FetchJob represents a single hashtag feed fetch
type FetchJob struct {
	Hashtag string
	After   string
}

// FetchResult represents the result of a fetch job
type FetchResult struct {
	Job      FetchJob
	Response *instagram.HashtagResponse
	Error    error
	Duration time.Duration
	Posts    int
}

// Fetcher fetches hashtag feeds
type Fetcher interface {
	FetchHashtagFeed(tag string, after string) (*instagram.HashtagResponse, error)
}

// Prefetcher fetches hashtag feeds concurrently so the engagement loop never
// waits on the network between tags
type Prefetcher struct {
	numWorkers  int
	jobQueue    chan FetchJob
	resultQueue chan FetchResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      Fetcher
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewPrefetcher creates a feed prefetcher. The rate limiter may be nil when
// the client paces its own requests.
func NewPrefetcher(
	numWorkers int,
	client Fetcher,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *Prefetcher {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}

	return &Prefetcher{
		numWorkers:  numWorkers,
		jobQueue:    make(chan FetchJob, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan FetchResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (p *Prefetcher) Start() {
	p.logger.InfoWithFields("Starting feed prefetcher", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully shuts down the prefetcher
func (p *Prefetcher) Stop() {
	p.logger.Info("Stopping feed prefetcher...")

	// Close job queue to signal no more jobs will be added
	close(p.jobQueue)

	// Wait for all workers to finish processing remaining jobs
	p.wg.Wait()

	// Close result queue
	close(p.resultQueue)

	// Cancel context
	p.cancel()

	p.logger.Info("Feed prefetcher stopped")
}

// Submit adds a new fetch job to the queue
func (p *Prefetcher) Submit(job FetchJob) error {
	select {
	case p.jobQueue <- job:
		p.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"hashtag": job.Hashtag,
		})
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("prefetcher is shutting down")
	}
}

// Results returns the result channel for consuming fetched feeds
func (p *Prefetcher) Results() <-chan FetchResult {
	return p.resultQueue
}

// worker is the main worker routine
func (p *Prefetcher) worker(id int) {
	defer p.wg.Done()

	p.logger.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	for job := range p.jobQueue {
		// Check if context is cancelled
		select {
		case <-p.ctx.Done():
			p.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := p.processJob(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			p.logger.DebugWithFields("Worker stopping - context cancelled while sending result", map[string]interface{}{
				"worker_id": id,
			})
			return
		}
	}

	p.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// processJob handles a single fetch job
func (p *Prefetcher) processJob(job FetchJob, workerID int) FetchResult {
	start := time.Now()
	result := FetchResult{
		Job: job,
	}

	p.logger.DebugWithFields("Worker fetching feed", map[string]interface{}{
		"worker_id": workerID,
		"hashtag":   job.Hashtag,
	})

	if p.rateLimiter != nil && !p.rateLimiter.Allow() {
		p.logger.DebugWithFields("Worker waiting for rate limit", map[string]interface{}{
			"worker_id": workerID,
			"hashtag":   job.Hashtag,
		})
		p.rateLimiter.Wait()
	}

	resp, err := p.client.FetchHashtagFeed(job.Hashtag, job.After)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("fetch failed: %w", err)

		p.logger.ErrorWithFields("Worker failed to fetch feed", map[string]interface{}{
			"worker_id": workerID,
			"hashtag":   job.Hashtag,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
		return result
	}

	result.Response = resp
	result.Posts = len(resp.Data.Hashtag.EdgeHashtagToMedia.Edges)

	p.logger.DebugWithFields("Worker fetched feed", map[string]interface{}{
		"worker_id": workerID,
		"hashtag":   job.Hashtag,
		"posts":     result.Posts,
		"duration":  result.Duration,
	})
	return result
}
