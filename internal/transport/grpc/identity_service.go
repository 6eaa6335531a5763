package transportgrpc

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
	grpcinterceptors "github.com/kandyfoma/goshopperai-sub000/internal/transport/grpc/interceptors"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

// IdentityServiceName is the fully-qualified gRPC service name.
const IdentityServiceName = "goshopper.identity.v1.IdentityService"

// Full method names, used for the public allow list.
const (
	MethodValidateToken  = "/" + IdentityServiceName + "/ValidateToken"
	MethodNormalizePhone = "/" + IdentityServiceName + "/NormalizePhone"
	MethodGetProfile     = "/" + IdentityServiceName + "/GetProfile"
)

// IdentityServer is the server contract of goshopper.identity.v1.IdentityService.
// Messages use the well-known protobuf types so no generated code is needed.
type IdentityServer interface {
	ValidateToken(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	NormalizePhone(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProfile(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// IdentityServiceDesc describes the service for grpc.Server.RegisterService.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateToken", Handler: validateTokenHandler},
		{MethodName: "NormalizePhone", Handler: normalizePhoneHandler},
		{MethodName: "GetProfile", Handler: getProfileHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "goshopper/identity/v1/identity.proto",
}

func validateTokenHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).ValidateToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodValidateToken}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityServer).ValidateToken(ctx, req.(*wrapperspb.StringValue))
	})
}

func normalizePhoneHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).NormalizePhone(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodNormalizePhone}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityServer).NormalizePhone(ctx, req.(*structpb.Struct))
	})
}

func getProfileHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).GetProfile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetProfile}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityServer).GetProfile(ctx, req.(*emptypb.Empty))
	})
}

// IdentityService lets internal services validate access tokens, normalize
// phone numbers with the shared numbering plan and read the caller's profile.
type IdentityService struct {
	tokens     grpcinterceptors.TokenParser
	plan       *numbering.Plan
	users      *usecase.UserService
	defaultISO string
	logger     *zap.Logger
}

// NewIdentityService constructs IdentityService. users may be nil, in which
// case GetProfile is unavailable.
func NewIdentityService(tokens grpcinterceptors.TokenParser, plan *numbering.Plan, users *usecase.UserService, defaultISO string, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultISO == "" {
		defaultISO = "CD"
	}
	return &IdentityService{tokens: tokens, plan: plan, users: users, defaultISO: defaultISO, logger: logger}
}

// ValidateToken reports whether the token is a valid access token. An invalid
// token is a normal answer, not an RPC error.
func (s *IdentityService) ValidateToken(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := strings.TrimSpace(req.GetValue())
	if token == "" {
		return newStruct(map[string]any{"valid": false, "error": "token is required"})
	}
	userID, err := s.tokens.ParseAccessToken(token)
	if err != nil {
		return newStruct(map[string]any{"valid": false, "error": "access token invalid"})
	}
	return newStruct(map[string]any{"valid": true, "user_id": userID})
}

// NormalizePhone expects {"phone": "...", "country_iso": "..."}.
func (s *IdentityService) NormalizePhone(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	raw := fields["phone"].GetStringValue()
	if strings.TrimSpace(raw) == "" {
		return nil, status.Error(codes.InvalidArgument, "phone is required")
	}
	iso := strings.ToUpper(strings.TrimSpace(fields["country_iso"].GetStringValue()))
	if iso == "" {
		iso = s.defaultISO
	}

	details, err := s.plan.Parse(raw, iso)
	if errors.Is(err, domain.ErrUnsupportedCountry) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	out := map[string]any{
		"valid":       err == nil,
		"canonical":   details.Number.Canonical(),
		"e164":        details.Number.E164(),
		"carrier":     string(details.Carrier),
		"truncated":   details.Number.Truncated,
		"country_iso": details.Number.CountryISO,
	}
	if err != nil {
		out["error"] = err.Error()
	}
	return newStruct(out)
}

// GetProfile returns the authenticated caller's account and profile.
func (s *IdentityService) GetProfile(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.users == nil {
		return nil, status.Error(codes.Unimplemented, "profiles unavailable")
	}
	userID, ok := grpcinterceptors.UserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	user, profile, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, toStatus(err, s.logger)
	}

	profileFields := make(map[string]any, len(profile.Fields))
	for k, v := range profile.Fields {
		profileFields[k] = v
	}
	out, err := newStruct(map[string]any{
		"id":             user.ID,
		"phone":          user.Phone,
		"email":          user.Email,
		"name":           user.Name,
		"city":           user.City,
		"country_iso":    user.CountryISO,
		"phone_verified": user.PhoneVerified,
		"profile":        profileFields,
	})
	if err != nil {
		s.logger.Warn("encode profile failed", zap.String("user_id", userID), zap.Error(err))
	}
	return out, err
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func toStatus(err error, logger *zap.Logger) error {
	switch {
	case errors.Is(err, repository.ErrNotFound), domain.AuthErrorCode(err) == domain.AuthUserNotFound:
		return status.Error(codes.NotFound, "user not found")
	case domain.AuthErrorCode(err) == domain.AuthNetworkFailed:
		return status.Error(codes.Unavailable, "identity provider unavailable")
	default:
		logger.Error("identity call failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}
