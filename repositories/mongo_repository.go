package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/trust-tournament/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	tournamentsCollection = "tournaments"
	matchesCollection     = "matches"
	playersCollection     = "players"
)

// EnsureMongoIndexes creates the indexes the mongo repositories query by.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(tournamentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create tournament index: %w", err)
	}

	_, err = db.Collection(matchesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "player1.address", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "player2.address", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "tournamentId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create match indexes: %w", err)
	}

	_, err = db.Collection(playersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reputation", Value: -1}}},
		{Keys: bson.D{{Key: "totalEarnings", Value: -1}}},
		{Keys: bson.D{{Key: "matchesWon", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create player indexes: %w", err)
	}
	return nil
}

type mongoTournamentRepository struct {
	collection *mongo.Collection
}

func NewMongoTournamentRepository(db *mongo.Database) TournamentRepository {
	return &mongoTournamentRepository{collection: db.Collection(tournamentsCollection)}
}

func (r *mongoTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	now := time.Now().UTC()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrTournamentConflict
		}
		return fmt.Errorf("failed to insert tournament %s: %w", t.ID, err)
	}
	return nil
}

func (r *mongoTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	var t models.Tournament
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %s: %w", id, err)
	}
	if t.Metrics.ReputationBonuses == nil {
		t.Metrics.ReputationBonuses = make(map[string]int64)
	}
	return &t, nil
}

func (r *mongoTournamentRepository) Save(ctx context.Context, t *models.Tournament) error {
	expected := t.Version
	t.Version = expected + 1
	t.UpdatedAt = time.Now().UTC()

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": t.ID, "version": expected}, t)
	if err != nil {
		t.Version = expected
		return fmt.Errorf("failed to save tournament %s: %w", t.ID, err)
	}
	if res.MatchedCount == 0 {
		t.Version = expected
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": t.ID})
		if err != nil {
			return fmt.Errorf("failed to check tournament %s: %w", t.ID, err)
		}
		if count == 0 {
			return ErrTournamentNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *mongoTournamentRepository) ListByStatus(ctx context.Context, status models.TournamentStatus, limit int) ([]*models.Tournament, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit, 20, 200)))

	cursor, err := r.collection.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer cursor.Close(ctx)

	var tournaments []*models.Tournament
	if err := cursor.All(ctx, &tournaments); err != nil {
		return nil, fmt.Errorf("failed to decode tournaments: %w", err)
	}
	return tournaments, nil
}

type mongoMatchRepository struct {
	collection *mongo.Collection
}

func NewMongoMatchRepository(db *mongo.Database) MatchRepository {
	return &mongoMatchRepository{collection: db.Collection(matchesCollection)}
}

func (r *mongoMatchRepository) Create(ctx context.Context, m *models.MatchRecord) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	m.Player1.Address = models.NormalizeAddress(m.Player1.Address)
	m.Player2.Address = models.NormalizeAddress(m.Player2.Address)

	if _, err := r.collection.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrMatchConflict
		}
		return fmt.Errorf("failed to insert match %s: %w", m.ID, err)
	}
	return nil
}

func (r *mongoMatchRepository) GetByID(ctx context.Context, id string) (*models.MatchRecord, error) {
	var m models.MatchRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	return &m, nil
}

func (r *mongoMatchRepository) Save(ctx context.Context, m *models.MatchRecord) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", m.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrMatchNotFound
	}
	return nil
}

func (r *mongoMatchRepository) ListByParticipant(ctx context.Context, address string, limit int) ([]*models.MatchRecord, error) {
	address = models.NormalizeAddress(address)
	filter := bson.M{"$or": bson.A{
		bson.M{"player1.address": address},
		bson.M{"player2.address": address},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit, 20, 100)))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for %s: %w", address, err)
	}
	defer cursor.Close(ctx)

	var matches []*models.MatchRecord
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}
	return matches, nil
}

type mongoPlayerRepository struct {
	collection *mongo.Collection
}

func NewMongoPlayerRepository(db *mongo.Database) PlayerRepository {
	return &mongoPlayerRepository{collection: db.Collection(playersCollection)}
}

var playerSortFields = map[models.PlayerSort]string{
	models.SortByReputation: "reputation",
	models.SortByEarnings:   "totalEarnings",
	models.SortByWins:       "matchesWon",
}

func (r *mongoPlayerRepository) GetByAddress(ctx context.Context, address string) (*models.Player, error) {
	var p models.Player
	err := r.collection.FindOne(ctx, bson.M{"_id": models.NormalizeAddress(address)}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player %s: %w", address, err)
	}
	return &p, nil
}

func (r *mongoPlayerRepository) Upsert(ctx context.Context, p *models.Player) error {
	p.Address = models.NormalizeAddress(p.Address)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": p.Address}, p, opts); err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", p.Address, err)
	}
	return nil
}

func (r *mongoPlayerRepository) List(ctx context.Context, sortBy models.PlayerSort, limit, offset int) ([]*models.Player, error) {
	field, ok := playerSortFields[sortBy]
	if !ok {
		field = playerSortFields[models.SortByReputation]
	}
	if offset < 0 {
		offset = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(normalizeLimit(limit, 50, 200)))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer cursor.Close(ctx)

	var players []*models.Player
	if err := cursor.All(ctx, &players); err != nil {
		return nil, fmt.Errorf("failed to decode players: %w", err)
	}
	return players, nil
}
