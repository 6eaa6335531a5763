package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	authorizationKey = "authorization"
	bearerPrefix     = "bearer "
)

// TokenParser resolves a bearer access token to its user id.
type TokenParser interface {
	ParseAccessToken(token string) (string, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	// AllowMethods lists full method names served without a token.
	AllowMethods []string
	// AllowPrefixes lists method prefixes, such as a whole service, served without a token.
	AllowPrefixes []string
	Logger        *zap.Logger
}

// AuthInterceptor validates incoming calls using access tokens.
type AuthInterceptor struct {
	parser   TokenParser
	logger   *zap.Logger
	allow    map[string]struct{}
	prefixes []string
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(parser TokenParser, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}
	prefixes := make([]string, 0, len(opts.AllowPrefixes))
	for _, prefix := range opts.AllowPrefixes {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			prefixes = append(prefixes, prefix)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{parser: parser, logger: logger, allow: allow, prefixes: prefixes}
}

func (ai *AuthInterceptor) public(method string) bool {
	if _, ok := ai.allow[method]; ok {
		return true
	}
	for _, prefix := range ai.prefixes {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}

func (ai *AuthInterceptor) authenticate(ctx context.Context, method string) (context.Context, error) {
	token, err := tokenFromMetadata(ctx)
	if err != nil {
		ai.logger.Warn("gRPC authentication failed", zap.String("method", method), zap.Error(err))
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	userID, err := ai.parser.ParseAccessToken(token)
	if err != nil || userID == "" {
		ai.logger.Warn("gRPC token validation failed", zap.String("method", method), zap.Error(err))
		return nil, status.Error(codes.Unauthenticated, "invalid access token")
	}
	return WithUserID(ctx, userID), nil
}

// UnaryServerInterceptor returns a gRPC unary interceptor that enforces authentication.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if ai == nil || ai.parser == nil || ai.public(info.FullMethod) {
			return handler(ctx, req)
		}
		authed, err := ai.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(authed, req)
	}
}

// StreamServerInterceptor enforces authentication on streaming calls.
func (ai *AuthInterceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if ai == nil || ai.parser == nil || ai.public(info.FullMethod) {
			return handler(srv, ss)
		}
		authed, err := ai.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: authed})
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

type userIDContextKey struct{}

// WithUserID returns a derived context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user id.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(userIDContextKey{}).(string)
	return id, ok && id != ""
}

func tokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}

	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errors.New("authorization token required")
	}

	value := strings.TrimSpace(values[0])
	if len(value) < len(bearerPrefix) || !strings.HasPrefix(strings.ToLower(value), bearerPrefix) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("authorization token required")
	}
	return token, nil
}
