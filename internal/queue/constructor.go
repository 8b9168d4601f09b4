package queue

import (
	"github.com/postloop/postloop/internal/repository"
	"github.com/postloop/postloop/internal/service"
)

type Queue struct {
	pr  repository.PostRepository
	ar  repository.ActivityRepository
	pub service.PublishService
}

func NewQueue(
	pr repository.PostRepository,
	ar repository.ActivityRepository,
	pub service.PublishService) *Queue {
	return &Queue{
		pr:  pr,
		ar:  ar,
		pub: pub,
	}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
