package httpapi

import (
	"net/http"

	"github.com/itskum47/sprinklerd/internal/controller"
	"github.com/itskum47/sprinklerd/internal/interceptor"
	"github.com/itskum47/sprinklerd/internal/queue"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

// classify maps a core error to the HTTP status and client-visible error
// kind it should surface as.
func classify(err error) (status int, kind string) {
	switch e := err.(type) {
	case *controller.UnknownSprinklerError:
		return http.StatusBadRequest, "unknown_sprinkler"
	case *queue.InvalidDurationError:
		return http.StatusBadRequest, "invalid_duration"
	case *queue.NotFoundError:
		return http.StatusNotFound, "not_found"
	case *interceptor.Error:
		switch e.Kind {
		case interceptor.KindConcurrencyExceeded:
			return http.StatusConflict, "concurrency_exceeded"
		case interceptor.KindBudgetExceeded:
			return http.StatusConflict, "budget_exceeded"
		case interceptor.KindAlreadyOn:
			return http.StatusInternalServerError, "already_on"
		case interceptor.KindAlreadyOff:
			return http.StatusInternalServerError, "already_off"
		}
		return http.StatusInternalServerError, string(e.Kind)
	case *sprinkler.DriverError:
		return http.StatusInternalServerError, "driver_error"
	}
	return http.StatusInternalServerError, "internal_error"
}
