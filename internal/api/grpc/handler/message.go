package handler

import (
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/carebook-server/internal/model"
)

// stringField returns the string value stored under key, or "" when the
// field is absent or not a string.
func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	v, ok := s.GetFields()[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func userMessage(user model.User) *structpb.Struct {
	roles := make([]*structpb.Value, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, structpb.NewStringValue(string(r)))
	}

	id := ""
	if user.ID != uuid.Nil {
		id = user.ID.String()
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":    structpb.NewStringValue(id),
		"email": structpb.NewStringValue(user.Email),
		"roles": structpb.NewListValue(&structpb.ListValue{Values: roles}),
	}}
}

func tokenPairMessage(access, refresh string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"access_token":  structpb.NewStringValue(access),
		"refresh_token": structpb.NewStringValue(refresh),
	}}
}
