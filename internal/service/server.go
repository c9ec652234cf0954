package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"get5-api/internal/cache"
	"get5-api/internal/metrics"
	"get5-api/internal/model"
	"get5-api/internal/pkg/db"
	"get5-api/internal/pkg/optional"
	"get5-api/internal/pkg/partial"
	"get5-api/internal/pkg/secret"
	"get5-api/internal/repository"
)

// ServerService manages registered game servers. RCON passwords are
// encrypted before they reach the database and decrypted only for the owner.
type ServerService struct {
	db      db.Database
	servers *repository.GameServerRepository
	codec   *secret.Codec
	cache   cache.PublicServers
	metrics *metrics.Metrics
}

// NewServerService creates a new ServerService instance. A nil cache
// disables caching and m may be nil.
func NewServerService(d db.Database, codec *secret.Codec, c cache.PublicServers, m *metrics.Metrics) *ServerService {
	return &ServerService{
		db:      d,
		servers: repository.NewGameServerRepository(d),
		codec:   codec,
		cache:   c,
		metrics: m,
	}
}

// canMutate is the mutation policy: super-admins may touch any server and
// everyone else only the servers they own. The WHERE clause of the
// mutation repeats the owner restriction.
func canMutate(p model.Principal, ownerID int64) bool {
	return p.SuperAdmin || ownerID == p.ID
}

// scopeUserID returns the owner id a mutation is restricted to. Only
// super-admins may act on behalf of another user.
func scopeUserID(p model.Principal, requested optional.Value[int64]) (int64, error) {
	id, ok := requested.Get()
	if !ok || id == p.ID {
		return p.ID, nil
	}
	if !p.SuperAdmin {
		return 0, ErrUnauthorized
	}
	return id, nil
}

// Create registers a server and returns its id. The owner is the payload's
// user_id, or the caller when it is omitted.
func (s *ServerService) Create(ctx context.Context, p *model.Principal, in *model.GameServerInput) (int64, error) {
	var (
		userID int64
		err    error
	)
	switch {
	case p != nil:
		userID, err = scopeUserID(*p, in.UserID)
	case in.UserID.IsPresent():
		userID, err = positive("user_id", in.UserID)
	default:
		err = invalid("user_id", "is required")
	}
	if err != nil {
		return 0, fail(ctx, s.metrics, "server.create", err)
	}

	if !in.IPString.IsPresent() {
		return 0, fail(ctx, s.metrics, "server.create", invalid("ip_string", "is required"))
	}
	if !in.Port.IsPresent() {
		return 0, fail(ctx, s.metrics, "server.create", invalid("port", "is required"))
	}

	set, err := s.serverFields(in)
	if err != nil {
		return 0, fail(ctx, s.metrics, "server.create", err)
	}
	set.Put("user_id", userID)

	id, err := inTx(ctx, s.db, s.metrics, func(tx pgx.Tx) (int64, error) {
		return s.servers.WithTx(tx).Insert(ctx, set)
	})
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			err = invalid("user_id", "unknown user")
		}
		return 0, fail(ctx, s.metrics, "server.create", err)
	}

	s.invalidate(ctx)
	zerolog.Ctx(ctx).Info().Int64("server_id", id).Int64("user_id", userID).Msg("Game server created")

	return id, nil
}

// ListPublic returns the public listing, which never carries a password.
func (s *ServerService) ListPublic(ctx context.Context) ([]model.PublicServer, error) {
	if s.cache == nil {
		servers, err := s.servers.ListPublic(ctx)
		if err != nil {
			return nil, fail(ctx, s.metrics, "server.list_public", err)
		}
		return servers, nil
	}

	logger := zerolog.Ctx(ctx)

	servers, gen, err := s.cache.Get(ctx)
	switch {
	case err == nil:
		s.metrics.IncCache("hit")
		return servers, nil
	case errors.Is(err, cache.ErrMiss):
		s.metrics.IncCache("miss")
	default:
		s.metrics.IncCache("error")
		logger.Warn().Err(err).Msg("Public server cache unavailable")
	}

	servers, err = s.servers.ListPublic(ctx)
	if err != nil {
		return nil, fail(ctx, s.metrics, "server.list_public", err)
	}
	if err := s.cache.Set(ctx, gen, servers); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache public servers")
	}
	return servers, nil
}

// ListMine returns the caller's servers with plaintext passwords.
func (s *ServerService) ListMine(ctx context.Context, p model.Principal) ([]model.GameServer, error) {
	servers, err := s.servers.ListByOwner(ctx, p.ID)
	if err != nil {
		return nil, fail(ctx, s.metrics, "server.list_mine", err)
	}
	for i := range servers {
		s.reveal(ctx, &servers[i])
	}
	return servers, nil
}

// Get returns one of the caller's servers with its plaintext password.
func (s *ServerService) Get(ctx context.Context, p model.Principal, id int64) (*model.GameServer, error) {
	server, err := s.servers.GetForOwner(ctx, id, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			err = ErrNotFound
		}
		return nil, fail(ctx, s.metrics, "server.get", err)
	}
	s.reveal(ctx, server)
	return server, nil
}

// Update applies the fields present in the payload. The policy check runs
// inside the same unit of work, before any write.
func (s *ServerService) Update(ctx context.Context, p model.Principal, in *model.GameServerInput) error {
	id, err := positive("server_id", in.ServerID)
	if err != nil {
		return fail(ctx, s.metrics, "server.update", err)
	}
	userID, err := scopeUserID(p, in.UserID)
	if err != nil {
		return fail(ctx, s.metrics, "server.update", err)
	}
	set, err := s.serverFields(in)
	if err != nil {
		return fail(ctx, s.metrics, "server.update", err)
	}

	_, err = inTx(ctx, s.db, s.metrics, func(tx pgx.Tx) (struct{}, error) {
		repo := s.servers.WithTx(tx)
		if err := authorize(ctx, repo, p, id); err != nil {
			return struct{}{}, err
		}

		if set.Empty() {
			exists, err := repo.ExistsForOwner(ctx, id, userID)
			if err != nil {
				return struct{}{}, err
			}
			if !exists {
				return struct{}{}, ErrNotFound
			}
			return struct{}{}, nil
		}

		n, err := repo.Update(ctx, set, id, userID)
		if err != nil {
			return struct{}{}, err
		}
		if n == 0 {
			return struct{}{}, ErrNotFound
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fail(ctx, s.metrics, "server.update", err)
	}

	s.invalidate(ctx)
	zerolog.Ctx(ctx).Info().
		Int64("server_id", id).
		Int64("user_id", userID).
		Strs("fields", set.Columns()).
		Msg("Game server updated")

	return nil
}

// Delete removes a server under the same policy as Update.
func (s *ServerService) Delete(ctx context.Context, p model.Principal, in *model.ServerDeleteInput) error {
	id, err := positive("server_id", in.ServerID)
	if err != nil {
		return fail(ctx, s.metrics, "server.delete", err)
	}
	userID, err := scopeUserID(p, in.UserID)
	if err != nil {
		return fail(ctx, s.metrics, "server.delete", err)
	}

	_, err = inTx(ctx, s.db, s.metrics, func(tx pgx.Tx) (struct{}, error) {
		repo := s.servers.WithTx(tx)
		if err := authorize(ctx, repo, p, id); err != nil {
			return struct{}{}, err
		}

		n, err := repo.Delete(ctx, id, userID)
		if err != nil {
			return struct{}{}, err
		}
		if n == 0 {
			return struct{}{}, ErrNotFound
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fail(ctx, s.metrics, "server.delete", err)
	}

	s.invalidate(ctx)
	zerolog.Ctx(ctx).Info().Int64("server_id", id).Int64("user_id", userID).Msg("Game server deleted")

	return nil
}

// authorize rejects a caller who may not mutate server id before anything
// is written. A server that does not exist is NotFound for everyone.
func authorize(ctx context.Context, repo *repository.GameServerRepository, p model.Principal, id int64) error {
	ownerID, err := repo.OwnerOf(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !canMutate(p, ownerID) {
		return ErrUnauthorized
	}
	return nil
}

// serverFields validates the mutable fields present in in and returns them
// as a set, with the password already encrypted.
func (s *ServerService) serverFields(in *model.GameServerInput) (*partial.Set, error) {
	set := partial.New()

	if ip, ok := in.IPString.Get(); ok {
		if ip == "" {
			return nil, invalid("ip_string", "must not be empty")
		}
		set.Put("ip_string", ip)
	}
	if port, ok := in.Port.Get(); ok {
		if port < 1 || port > 65535 {
			return nil, invalid("port", "must be between 1 and 65535")
		}
		set.Put("port", port)
	}
	set.Add("display_name", in.DisplayName)
	if v, ok := in.PublicServer.Get(); ok {
		set.Put("public_server", bool(v))
	}
	if v, ok := in.InUse.Get(); ok {
		set.Put("in_use", bool(v))
	}
	if pw, ok := in.RCONPassword.Get(); ok {
		encoded, err := s.codec.Seal(pw)
		if err != nil {
			return nil, err
		}
		set.Put("rcon_password", encoded)
	}
	return set, nil
}

func (s *ServerService) reveal(ctx context.Context, server *model.GameServer) {
	logCtx := zerolog.Ctx(ctx).With().Int64("server_id", server.ID).Logger().WithContext(ctx)
	server.RCONPassword = s.codec.Decrypt(logCtx, server.RCONPassword)
}

func (s *ServerService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to invalidate public server cache")
	}
}
