// Package mongostore is the MongoDB persistence gateway. Each project is one
// document with its tasks embedded in the "task" array, the layout existing
// boards were written with.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dohr-michael/taskboard/internal/board"
)

// Options configures the connection.
type Options struct {
	URI        string
	Database   string
	Collection string
	// Transactions runs a reassignment in one multi-document transaction.
	// Requires a replica set; when false each placement commits on its own.
	Transactions bool
	Timeout      time.Duration
}

// Store implements board.Store on a MongoDB collection.
type Store struct {
	client       *mongo.Client
	coll         *mongo.Collection
	transactions bool
	now          func() time.Time
}

var _ board.Store = (*Store)(nil)

// Open connects, pings and makes sure the unique title index exists.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" {
		return nil, errors.New("mongo uri is required")
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.Timeout > 0 {
		clientOpts.SetTimeout(opts.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{
		client:       client,
		coll:         client.Database(opts.Database).Collection(opts.Collection),
		transactions: opts.Transactions,
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}

	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "title", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create title index: %w", err)
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateProject(ctx context.Context, p *board.Project) error {
	now := s.now()
	doc := projectDoc{
		ID:          primitive.NewObjectID(),
		Title:       p.Title,
		Description: p.Description,
		Task:        []taskDoc{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return board.ErrDuplicateTitle
		}
		return fmt.Errorf("insert project: %w", err)
	}

	*p = *doc.toProject()
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*board.Project, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid}, board.ErrNotFound)
}

func (s *Store) ListProjects(ctx context.Context) ([]board.ProjectSummary, error) {
	cur, err := s.coll.Find(ctx, bson.D{},
		options.Find().SetProjection(bson.M{"task": 0, "updatedAt": 0}))
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	defer cur.Close(ctx)

	list := []board.ProjectSummary{}
	for cur.Next(ctx) {
		var doc projectDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode project: %w", err)
		}
		list = append(list, doc.toProject().Summary())
	}
	return list, cur.Err()
}

func (s *Store) UpdateProject(ctx context.Context, id string, in board.ProjectInput) (*board.Project, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	p, err := s.findOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"title":       in.Title,
		"description": in.Description,
		"updatedAt":   s.now(),
	}}, board.ErrNotFound)
	if mongo.IsDuplicateKeyError(err) {
		return nil, board.ErrDuplicateTitle
	}
	return p, err
}

func (s *Store) DeleteProject(ctx context.Context, id string) (*board.Project, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc projectDoc
	err = s.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, board.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete project: %w", err)
	}
	return doc.toProject(), nil
}

func (s *Store) AppendTask(ctx context.Context, projectID string, expectedCount int, t *board.Task) error {
	oid, err := parseID(projectID)
	if err != nil {
		return err
	}

	now := s.now()
	doc := newTaskDoc(t, now)

	res, err := s.coll.UpdateOne(ctx, appendFilter(oid, expectedCount), bson.M{
		"$push": bson.M{"task": doc},
		"$set":  bson.M{"updatedAt": now},
	})
	if err != nil {
		return fmt.Errorf("push task: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return fmt.Errorf("count project: %w", err)
		}
		if n == 0 {
			return board.ErrNotFound
		}
		return board.ErrConflict
	}

	*t = doc.toTask()
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, projectID, taskID string, in board.TaskInput) (*board.Project, error) {
	filter, err := taskFilter(projectID, taskID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	set := bson.M{
		"task.$.title":       in.Title,
		"task.$.description": in.Description,
		"task.$.updated_at":  now,
		"updatedAt":          now,
	}
	if in.Attachments != nil {
		set["task.$.attachment"] = attachmentDocs(in.Attachments)
	}
	return s.findOneAndUpdate(ctx, filter, bson.M{"$set": set}, board.ErrTaskNotFound)
}

func (s *Store) DeleteTask(ctx context.Context, projectID, taskID string) (*board.Project, error) {
	filter, err := taskFilter(projectID, taskID)
	if err != nil {
		return nil, err
	}

	return s.findOneAndUpdate(ctx, filter, bson.M{
		"$pull": bson.M{"task": bson.M{"_id": filter["task._id"]}},
		"$set":  bson.M{"updatedAt": s.now()},
	}, board.ErrTaskNotFound)
}

// ApplyPlacements updates one embedded task per placement with the
// positional operator. With transactions enabled the batch commits as a whole.
func (s *Store) ApplyPlacements(ctx context.Context, projectID string, placements []board.Placement) ([]board.Outcome, error) {
	oid, err := parseID(projectID)
	if err != nil {
		return nil, err
	}

	apply := func(ctx context.Context) ([]board.Outcome, error) {
		outcomes := make([]board.Outcome, 0, len(placements))
		for _, pl := range placements {
			o := board.Outcome{TaskID: pl.TaskID, Stage: pl.Stage, Order: pl.Order}

			tid, err := primitive.ObjectIDFromHex(pl.TaskID)
			if err != nil {
				outcomes = append(outcomes, o)
				continue
			}

			now := s.now()
			p, err := s.findOneAndUpdate(ctx, bson.M{"_id": oid, "task._id": tid}, bson.M{"$set": bson.M{
				"task.$.order":      pl.Order,
				"task.$.stage":      pl.Stage,
				"task.$.updated_at": now,
				"updatedAt":         now,
			}}, board.ErrTaskNotFound)
			switch {
			case errors.Is(err, board.ErrTaskNotFound):
			case err != nil:
				return nil, fmt.Errorf("place task %s: %w", pl.TaskID, err)
			default:
				o.Updated, o.Project = true, p
			}
			outcomes = append(outcomes, o)
		}
		return outcomes, nil
	}

	if !s.transactions {
		return apply(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	res, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return apply(sc)
	})
	if err != nil {
		return nil, fmt.Errorf("reassign transaction: %w", err)
	}
	return res.([]board.Outcome), nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M, missing error) (*board.Project, error) {
	var doc projectDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, missing
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return doc.toProject(), nil
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.M, missing error) (*board.Project, error) {
	var doc projectDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, missing
	}
	if err != nil {
		return nil, err
	}
	return doc.toProject(), nil
}

// parseID converts a project id, rejecting anything that is not an ObjectID.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, board.ErrInvalidID
	}
	return oid, nil
}

// taskFilter matches a project holding a given task. A malformed task id can
// match nothing, so it reports ErrTaskNotFound.
func taskFilter(projectID, taskID string) (bson.M, error) {
	oid, err := parseID(projectID)
	if err != nil {
		return nil, err
	}
	tid, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, board.ErrTaskNotFound
	}
	return bson.M{"_id": oid, "task._id": tid}, nil
}

// appendFilter matches the project only while it holds expected tasks.
// Documents written without a task array count as empty.
func appendFilter(oid primitive.ObjectID, expected int) bson.M {
	if expected == 0 {
		return bson.M{"_id": oid, "$or": bson.A{
			bson.M{"task": bson.M{"$size": 0}},
			bson.M{"task": bson.M{"$exists": false}},
		}}
	}
	return bson.M{"_id": oid, "task": bson.M{"$size": expected}}
}
