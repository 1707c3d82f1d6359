package model

import (
	"context"
)

// PrincipalSource reads the principal of the calling request.
type PrincipalSource interface {
	GetPrincipalFromContext(ctx context.Context) (Principal, bool)
}

// ContextManager stores and retrieves the request principal.
type ContextManager interface {
	PrincipalSource
	SetPrincipalToContext(ctx context.Context, principal Principal) context.Context
}
