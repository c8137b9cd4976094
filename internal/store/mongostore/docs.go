package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dohr-michael/taskboard/internal/board"
)

type attachmentDoc struct {
	Type string `bson:"type"`
	URL  string `bson:"url"`
}

type taskDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Order       int                `bson:"order"`
	Stage       string             `bson:"stage"`
	Index       int                `bson:"index"`
	Attachment  []attachmentDoc    `bson:"attachment"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

type projectDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Task        []taskDoc          `bson:"task"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func newTaskDoc(t *board.Task, now time.Time) taskDoc {
	return taskDoc{
		ID:          primitive.NewObjectID(),
		Title:       t.Title,
		Description: t.Description,
		Order:       t.Order,
		Stage:       t.Stage,
		Index:       t.Index,
		Attachment:  attachmentDocs(t.Attachments),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func attachmentDocs(in []board.Attachment) []attachmentDoc {
	out := make([]attachmentDoc, 0, len(in))
	for _, a := range in {
		out = append(out, attachmentDoc{Type: a.Kind, URL: a.URL})
	}
	return out
}

func (d taskDoc) toTask() board.Task {
	t := board.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Order:       d.Order,
		Stage:       d.Stage,
		Index:       d.Index,
		Attachments: make([]board.Attachment, 0, len(d.Attachment)),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	for _, a := range d.Attachment {
		t.Attachments = append(t.Attachments, board.Attachment{Kind: a.Type, URL: a.URL})
	}
	return t
}

func (d projectDoc) toProject() *board.Project {
	p := &board.Project{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Tasks:       make([]board.Task, 0, len(d.Task)),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	for _, t := range d.Task {
		p.Tasks = append(p.Tasks, t.toTask())
	}
	return p
}
