package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = validator.New()

// fieldErrors flattens validator output into a field -> rule map for the
// error envelope.
func fieldErrors(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["body"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return fields
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	b, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

// pageParams reads limit/page query params, falling back to the
// collection defaults when absent or malformed.
func pageParams(r *http.Request) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 0
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 0
	}
	return limit, page
}

func objectIDParam(vars map[string]string, key string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(vars[key])
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
