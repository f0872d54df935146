package pubfeed

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

func (a *App) handleRSS(c echo.Context) error {
	body, err := a.Cache.RSS(c.Request().Context())
	if err != nil {
		return err
	}
	return renderRSS(c, body)
}

func (a *App) handleSitemap(c echo.Context) error {
	items, err := a.Cache.Items(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, items)
}

func (a *App) handleRobots(c echo.Context) error {
	file := filepath.Join(a.Config.PublicDir, "robots.txt")
	if _, err := os.Stat(file); err == nil {
		return c.File(file)
	}
	body := fmt.Sprintf("User-agent: *\nAllow: /\n\nSitemap: %s\n", strings.TrimSuffix(a.Config.URL, "/")+"/sitemap.xml")
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}
	if errors.Is(err, ErrSiteURLRequired) {
		c.Logger().Errorf("configuration error: %v", err)
	} else {
		c.Logger().Errorf("server error: %v", err)
	}
	_ = c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
