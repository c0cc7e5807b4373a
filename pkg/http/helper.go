package http

import (
	"net/http"
	"stayledger/pkg/config"
	apperrors "stayledger/pkg/errors"
	"stayledger/pkg/model"
	"strconv"
)

// Headers the authenticating gateway sets on every forwarded request.
const (
	HeaderCallerID   = "X-Caller-Id"
	HeaderCallerRole = "X-Caller-Role"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ExtractCaller builds the authorization context from gateway headers.
func ExtractCaller(r *http.Request) (model.Caller, error) {
	caller := model.Caller{
		ID:   r.Header.Get(HeaderCallerID),
		Role: model.Role(r.Header.Get(HeaderCallerRole)),
	}

	if caller.ID == "" {
		return model.Caller{}, apperrors.Unauthorized("missing " + HeaderCallerID + " header")
	}
	switch caller.Role {
	case model.RoleLandlord, model.RoleTenant, model.RolePlatform, model.RoleInvestor:
		return caller, nil
	default:
		return model.Caller{}, apperrors.Unauthorized("missing or unknown " + HeaderCallerRole + " header")
	}
}
