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

// AuthCodeRepository implements domain.AuthCodeRepository on MongoDB.
// Single-use semantics come from FindOneAndDelete: the read and the
// delete are one server-side operation, so concurrent redemptions of
// the same code can never both succeed.
type AuthCodeRepository struct {
	coll *mongo.Collection
}

func NewAuthCodeRepository(db *mongo.Database) *AuthCodeRepository {
	return &AuthCodeRepository{
		coll: db.Collection(CodesCollection),
	}
}

func (r *AuthCodeRepository) SaveAuthCode(ctx context.Context, authCode *domain.AuthCode) error {
	if authCode.Code == "" {
		return errors.New("auth code value cannot be empty")
	}

	_, err := r.coll.InsertOne(ctx, authCode)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("authorization code already exists: %w", domain.ErrDuplicate)
		}
		log.Error().Err(err).Str("client_id", authCode.ClientID).Msg("error saving authorization code")
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	log.Debug().Str("client_id", authCode.ClientID).Str("user_id", authCode.UserID).Msg("authorization code saved")

	return nil
}

func (r *AuthCodeRepository) ConsumeAuthCode(ctx context.Context, clientID, code string) (*domain.AuthCode, error) {
	var authCode domain.AuthCode
	err := r.coll.FindOneAndDelete(ctx, bson.M{"code": code, "client_id": clientID}).Decode(&authCode)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		log.Error().Err(err).Str("client_id", clientID).Msg("error consuming authorization code")
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	return &authCode, nil
}

func (r *AuthCodeRepository) DeleteAuthCode(ctx context.Context, code string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"code": code})
	if err != nil {
		return fmt.Errorf("failed to delete authorization code: %w", err)
	}
	return nil
}

func (r *AuthCodeRepository) DeleteExpiredAuthCodes(ctx context.Context) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
