package controllers

import (
	"net/http"

	"github.com/angelmondragon/orderdesk/api/responses"
	"github.com/angelmondragon/orderdesk/api/validators"
	"github.com/angelmondragon/orderdesk/internal/actions"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/types"
)

// ActionEndpoint serves one action envelope endpoint. The token may travel in the body or
// as an Authorization bearer header.
func ActionEndpoint(dispatcher *actions.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		head, raw, err := validators.ReadEnvelope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, result, err := dispatcher.Dispatch(r.Context(), actions.Request{
			Action: head.Action,
			Token:  validators.ResolveToken(head.Token, r.Header.Get("Authorization")),
			Body:   raw,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, types.Envelope{
			Message: result.Message,
			Data:    result.Data,
			Total:   result.Total,
			Stats:   result.Stats,
		})
	}
}
