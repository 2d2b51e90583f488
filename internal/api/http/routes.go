package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
)

var validate = validator.New()

const (
	staleHeader    = "X-Data-Stale"
	storedAtHeader = "X-Data-Stored-At"

	defaultLargestLimit = 10
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *neo.Service) {
	v1 := app.Group("/api/v1")

	asteroids := v1.Group("/asteroids")

	asteroids.Get("/", func(c *fiber.Ctx) error {
		var q listQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		page, err := service.Search(c.UserContext(), q.toQuery())
		if err != nil {
			return err
		}
		if page.Items == nil {
			page.Items = []neo.NearEarthObject{}
		}
		setFreshness(c, page.Freshness)
		return c.JSON(page)
	})

	asteroids.Get("/hazardous", func(c *fiber.Ctx) error {
		res, err := service.GetHazardous(c.UserContext())
		if err != nil {
			return err
		}
		return sendList(c, res)
	})

	asteroids.Get("/upcoming", func(c *fiber.Ctx) error {
		var q upcomingQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := service.GetUpcoming(c.UserContext(), q.Days)
		if err != nil {
			return err
		}
		if q.Limit > 0 && len(res.Objects) > q.Limit {
			res.Objects = res.Objects[:q.Limit]
		}
		return sendList(c, res)
	})

	asteroids.Get("/largest", func(c *fiber.Ctx) error {
		var q largestQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := service.GetLargest(c.UserContext(), q.Limit)
		if err != nil {
			return err
		}
		return sendList(c, res)
	})

	asteroids.Get("/closest", func(c *fiber.Ctx) error {
		var q closestQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := service.GetClosest(c.UserContext(), q.Limit)
		if err != nil {
			return err
		}
		return sendList(c, res)
	})

	asteroids.Get("/statistics/approaches", func(c *fiber.Ctx) error {
		st, err := service.ApproachStatistics(c.UserContext())
		if err != nil {
			return err
		}
		setFreshness(c, st.Freshness)
		return c.JSON(st)
	})

	asteroids.Post("/sync", func(c *fiber.Ctx) error {
		res, err := service.Sync(c.UserContext())
		if err != nil {
			return err
		}
		setFreshness(c, res.Freshness)
		return c.JSON(syncResponse{Synced: len(res.Objects), Freshness: res.Freshness})
	})

	asteroids.Post("/:id/calculate-risk", func(c *fiber.Ctx) error {
		report, err := service.CalculateRisk(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		setFreshness(c, report.Freshness)
		return c.JSON(report)
	})

	asteroids.Get("/statistics", func(c *fiber.Ctx) error {
		st, err := service.Statistics(c.UserContext())
		if err != nil {
			return err
		}
		setFreshness(c, st.Freshness)
		return c.JSON(st)
	})

	asteroids.Get("/:id", func(c *fiber.Ctx) error {
		obj, fresh, err := service.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		setFreshness(c, fresh)
		return c.JSON(objectResponse{Item: obj, Freshness: fresh})
	})

	v1.Delete("/cache", func(c *fiber.Ctx) error {
		service.ClearCache(c.UserContext())
		return c.JSON(fiber.Map{"cleared": true})
	})
}

type listResponse struct {
	Count int                   `json:"count"`
	Items []neo.NearEarthObject `json:"items"`
	neo.Freshness
}

type objectResponse struct {
	Item neo.NearEarthObject `json:"item"`
	neo.Freshness
}

type syncResponse struct {
	Synced int `json:"synced"`
	neo.Freshness
}

func sendList(c *fiber.Ctx, res neo.Lookup) error {
	items := res.Objects
	if items == nil {
		items = []neo.NearEarthObject{}
	}
	setFreshness(c, res.Freshness)
	return c.JSON(listResponse{Count: len(items), Items: items, Freshness: res.Freshness})
}

func setFreshness(c *fiber.Ctx, f neo.Freshness) {
	c.Set(staleHeader, strconv.FormatBool(f.Stale))
	if !f.StoredAt.IsZero() {
		c.Set(storedAtHeader, f.StoredAt.UTC().Format(time.RFC3339))
	}
}

// listQuery holds query parameters for the listing endpoint.
type listQuery struct {
	Name      string `validate:"max=100"`
	Hazardous string `validate:"omitempty,oneof=true false"`
	RiskLevel string `validate:"omitempty,oneof=very_low low medium high very_high critical"`
	Page      int    `validate:"gte=0,lte=1000000"`
	PageSize  int    `validate:"gte=0,lte=100"`
}

func (q *listQuery) bind(c *fiber.Ctx) error {
	q.Name = c.Query("name")
	q.Hazardous = c.Query("hazardous")
	q.RiskLevel = c.Query("risk_level")

	var err error
	if q.Page, err = queryInt(c, "page", 1); err != nil {
		return err
	}
	if q.PageSize, err = queryInt(c, "page_size", 20); err != nil {
		return err
	}
	return validate.Struct(q)
}

func (q listQuery) toQuery() neo.Query {
	out := neo.Query{
		Name:      q.Name,
		RiskLevel: neo.RiskLevel(q.RiskLevel),
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
	if q.Hazardous != "" {
		h := q.Hazardous == "true"
		out.Hazardous = &h
	}
	return out
}

// upcomingQuery holds query parameters for the upcoming endpoint. Zero days selects the default.
type upcomingQuery struct {
	Days  int `validate:"gte=0,lte=365"`
	Limit int `validate:"gte=0,lte=1000"`
}

func (q *upcomingQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.Days, err = queryInt(c, "days", 0); err != nil {
		return err
	}
	if q.Limit, err = queryInt(c, "limit", 0); err != nil {
		return err
	}
	return validate.Struct(q)
}

type largestQuery struct {
	Limit int `validate:"gte=1,lte=100"`
}

func (q *largestQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.Limit, err = queryInt(c, "limit", defaultLargestLimit); err != nil {
		return err
	}
	return validate.Struct(q)
}

type closestQuery struct {
	Limit int `validate:"gte=1,lte=50"`
}

func (q *closestQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.Limit, err = queryInt(c, "limit", neo.DefaultClosestLimit); err != nil {
		return err
	}
	return validate.Struct(q)
}

// queryInt parses an optional integer query parameter.
func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}
