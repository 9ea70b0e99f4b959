package core

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"moviebox/internal/models"
)

const (
	trailerType   = "Trailer"
	trailerSite   = "YouTube"
	youtubeEmbed  = "https://www.youtube.com/embed/"
	embedTemplate = `<iframe width="560" height="315" src="%s" title="%s" frameborder="0" allow="accelerometer; autoplay; encrypted-media; gyroscope; picture-in-picture" allowfullscreen></iframe>`
)

// SelectTrailer returns the first YouTube trailer in upstream order.
func SelectTrailer(videos []models.Video) (models.Video, bool) {
	for _, v := range videos {
		if strings.EqualFold(v.Type, trailerType) && strings.EqualFold(v.Site, trailerSite) && v.Key != "" {
			return v, true
		}
	}
	return models.Video{}, false
}

// Embed resolves the kind from the id prefix only and builds a player URL for
// the selected trailer.
func (m *Manager) Embed(ctx context.Context, raw string) (*models.Embed, error) {
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}

	videos, err := m.client.Videos(ctx, id.Kind, id.NativeID)
	if err != nil {
		return nil, upstreamLookupError(raw, err)
	}

	trailer, ok := SelectTrailer(videos)
	if !ok {
		m.logger.Debug("embed: no trailer among", len(videos), "videos for", raw)
		return nil, fmt.Errorf("%w: no trailer for %s", ErrNotFound, raw)
	}

	embedURL := youtubeEmbed + url.PathEscape(trailer.Key)
	return &models.Embed{
		ID:        raw,
		Key:       trailer.Key,
		EmbedURL:  embedURL,
		EmbedHTML: fmt.Sprintf(embedTemplate, html.EscapeString(embedURL), html.EscapeString(trailer.Name)),
	}, nil
}
