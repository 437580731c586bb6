package persistence

import (
	"database/sql"
	"time"

	"github.com/IliaW/defacement-crawler/internal/model"
)

type JobStorage interface {
	InsertJob(job *model.CrawlJob) error
	CompleteJob(jobID string, pagesCrawled int) error
	FailJob(jobID, reason string) error
}

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (jr *JobRepository) InsertJob(job *model.CrawlJob) error {
	_, err := jr.db.Exec(`INSERT INTO defacement.crawl_jobs
		(job_id, custid, siteid, start_url, status, started_at)
		VALUES ($1, $2, $3, $4, 'RUNNING', $5)`,
		job.JobID, job.CustID, job.SiteID, job.StartURL, time.Now().UTC())
	return err
}

func (jr *JobRepository) CompleteJob(jobID string, pagesCrawled int) error {
	_, err := jr.db.Exec(`UPDATE defacement.crawl_jobs
		SET status = 'COMPLETED', pages_crawled = $2, finished_at = $3
		WHERE job_id = $1`,
		jobID, pagesCrawled, time.Now().UTC())
	return err
}

func (jr *JobRepository) FailJob(jobID, reason string) error {
	if len(reason) > 1000 {
		reason = reason[:1000]
	}
	_, err := jr.db.Exec(`UPDATE defacement.crawl_jobs
		SET status = 'FAILED', failure_reason = $2, finished_at = $3
		WHERE job_id = $1`,
		jobID, reason, time.Now().UTC())
	return err
}
