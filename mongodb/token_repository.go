package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gatehouse-dev/gatehouse/domain"
)

// TokenRepository implements domain.TokenRepository on MongoDB. Rows
// are inserted once and only ever mutated by flipping the revoked flag;
// the expired+revoked pruner is the sole deleter.
type TokenRepository struct {
	coll *mongo.Collection
}

func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{
		coll: db.Collection(TokensCollection),
	}
}

func (r *TokenRepository) StoreToken(ctx context.Context, token *domain.Token) error {
	_, err := r.coll.InsertOne(ctx, token)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("token value already exists: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetByAccessToken(ctx context.Context, accessToken string) (*domain.Token, error) {
	return r.getToken(ctx, bson.M{"access_token": accessToken})
}

func (r *TokenRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Token, error) {
	return r.getToken(ctx, bson.M{"refresh_token": refreshToken})
}

func (r *TokenRepository) getToken(ctx context.Context, filter bson.M) (*domain.Token, error) {
	var token domain.Token
	err := r.coll.FindOne(ctx, filter).Decode(&token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve token: %w", err)
	}
	return &token, nil
}

func (r *TokenRepository) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	return r.revoke(ctx, bson.M{"refresh_token": refreshToken})
}

func (r *TokenRepository) RevokeByAccessToken(ctx context.Context, accessToken string) error {
	return r.revoke(ctx, bson.M{"access_token": accessToken})
}

// revoke flips the revoked flag only on a live row. The revoked:false
// filter makes the update a compare-and-set: when two callers race on
// the same row, the second matches nothing and gets ErrNotFound.
func (r *TokenRepository) revoke(ctx context.Context, filter bson.M) error {
	filter["revoked"] = false
	result, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		log.Error().Err(err).Msg("error revoking token")
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	log.Debug().Msg("token marked as revoked")
	return nil
}

func (r *TokenRepository) DeleteExpiredRevoked(ctx context.Context, cutoff time.Time) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{
		"revoked":            true,
		"refresh_expires_at": bson.M{"$lte": cutoff},
	})
	return err
}
