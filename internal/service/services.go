package service

import (
	"github.com/deppfellow/posts-api/internal/lib/job"
	"github.com/deppfellow/posts-api/internal/repository"
	"github.com/deppfellow/posts-api/internal/server"
)

var _ PostStore = (*repository.PostRepository)(nil)

// Services groups the services handlers depend on.
type Services struct {
	Posts *PostService
	Job   *job.JobService
}

// NewService builds the services and registers the job handlers that
// need repositories. Job workers are still started by the caller.
func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	if s.Job != nil {
		s.Job.InitHandlers(repos.Posts)
	}

	return &Services{
		Posts: NewPostService(repos.Posts),
		Job:   s.Job,
	}, nil
}
