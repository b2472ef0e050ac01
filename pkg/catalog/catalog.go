package catalog

import (
	"errors"
	"sort"

	"personachat/pkg/config"
)

var ErrUnknownPack = errors.New("unknown pack")

type Pack struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	Tag           string   `json:"tag"`
	Description   string   `json:"description"`
	Features      []string `json:"features"`
	OriginalPrice int      `json:"original_price"`
	PromoPrice    int      `json:"promo_price"`
	CheckoutURL   string   `json:"checkout_url"`
	Color         string   `json:"color"`
}

// DiscountPercent is the promo discount, truncated to a whole percent.
func (p Pack) DiscountPercent() int {
	if p.OriginalPrice <= 0 || p.PromoPrice >= p.OriginalPrice {
		return 0
	}
	return int(float64(p.OriginalPrice-p.PromoPrice) / float64(p.OriginalPrice) * 100)
}

// Catalog is everything the promotional pages show.
type Catalog struct {
	ProfileImage string            `json:"profile_image"`
	Previews     []string          `json:"previews"`
	Links        map[string]string `json:"links"`
	Audio        map[string]string `json:"audio"`
	Packs        []Pack            `json:"packs"`

	byKey map[string]int
}

func FromConfig(cfg *config.Config) *Catalog {
	c := &Catalog{
		ProfileImage: cfg.Catalog.ProfileImage,
		Previews:     append([]string(nil), cfg.Catalog.Previews...),
		Links:        copyMap(cfg.Catalog.Links),
		Audio:        copyMap(cfg.Catalog.Audio),
		Packs:        make([]Pack, 0, len(cfg.Catalog.Packs)),
		byKey:        make(map[string]int, len(cfg.Catalog.Packs)),
	}

	for _, pc := range cfg.Catalog.Packs {
		if pc.Key == "" {
			continue
		}
		if _, dup := c.byKey[pc.Key]; dup {
			continue
		}
		c.byKey[pc.Key] = len(c.Packs)
		c.Packs = append(c.Packs, Pack{
			Key:           pc.Key,
			Name:          pc.Name,
			Tag:           pc.Tag,
			Description:   pc.Description,
			Features:      append([]string(nil), pc.Features...),
			OriginalPrice: pc.OriginalPrice,
			PromoPrice:    pc.PromoPrice,
			CheckoutURL:   pc.CheckoutURL,
			Color:         pc.Color,
		})
	}
	return c
}

func (c *Catalog) Pack(key string) (Pack, error) {
	i, ok := c.byKey[key]
	if !ok {
		return Pack{}, ErrUnknownPack
	}
	return c.Packs[i], nil
}

// AudioClip returns the path of a named audio clip.
func (c *Catalog) AudioClip(name string) (string, bool) {
	path, ok := c.Audio[name]
	return path, ok
}

// LinkNames lists the social links in a stable order.
func (c *Catalog) LinkNames() []string {
	names := make([]string, 0, len(c.Links))
	for name := range c.Links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
