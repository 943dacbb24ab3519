package registry

// DefaultSurface is where artifacts of unclassified card types go.
const DefaultSurface = "common"

// Builtin returns a fresh copy of the compiled-in table. Sources loaded by
// Reload are merged over it.
func Builtin() *Table {
	return &Table{
		DefaultVariant: "plans",
		Variants: []Variant{
			// more specific markers first: "plans-education" contains "plans"
			{Name: "plans-education", Surface: "acom", Markers: []string{"plans-education"}},
			{Name: "plans-students", Surface: "acom", Markers: []string{"plans-students"}},
			{Name: "mini-compare-chart", Surface: "acom", Markers: []string{"mini-compare-chart"}},
			{Name: "ccd-suggested", Surface: "ccd", Markers: []string{"ccd-suggested"}},
			{Name: "ccd-slice", Surface: "ccd", Markers: []string{"ccd-slice"}},
			{Name: "ah-try-buy-widget", Surface: "adobe-home", Markers: []string{"ah-try-buy-widget"}},
			{Name: "ah-promoted-plans", Surface: "adobe-home", Markers: []string{"ah-promoted-plans"}},
			{Name: "fries", Surface: "commerce", Markers: []string{"fries"}},
			{
				Name:     "catalog",
				Surface:  "acom",
				Markers:  []string{"catalog"},
				Requires: []string{"price", "icon"},
				Selectors: map[string][]string{
					"description": {`div[slot="body-xs"] p`},
					"legalLink":   {`div[slot="body-xs"] p > a`},
				},
			},
			{
				Name:     "special-offers",
				Surface:  "acom",
				Markers:  []string{"special-offers"},
				Requires: []string{"price", "backgroundImage"},
				Selectors: map[string][]string{
					"title":   {`h3[slot="heading-xs"]`},
					"eyebrow": {`h4[slot="detail-m"]`},
				},
			},
			{Name: "segment", Surface: "acom", Markers: []string{"segment"}},
			{Name: "product", Surface: "acom", Markers: []string{"product"}},
			{Name: "image", Surface: "acom", Markers: []string{"image"}},
			{
				Name:    "plans",
				Surface: "acom",
				Markers: []string{"plans"},
				Selectors: map[string][]string{
					"price": {`p[slot="heading-m"] span.price`},
				},
			},
		},
		Selectors: map[string][]string{
			"title":              {`h3[slot="heading-xs"]`, `h3[slot="heading-s"]`, `[slot="heading-xs"]`, `[slot="heading-m"]`, `h3`},
			"eyebrow":            {`h4[slot="detail-s"]`, `[slot="detail-m"]`, `[slot="detail-s"]`},
			"description":        {`div[slot="body-xs"]`, `[slot="body-xs"]`, `[slot="body-s"]`},
			"price":              {`p[slot="heading-m"] span.price`, `[slot="heading-m"] span.price`, `span[is="inline-price"]`, `.price`},
			"strikethroughPrice": {`span.price-strikethrough`, `[data-template="strikethrough"]`, `s .price`},
			"cta":                {`div[slot="footer"] a.con-button`, `[slot="footer"] button`, `[slot="footer"] a`},
			"icon":               {`mas-mnemonic`, `merch-icon`, `[slot="icons"] img`},
			"legalLink":          {`[slot="promo-text"] a`, `a[href*="legal"]`},
			"backgroundImage":    {`div[slot="bg-image"] img`, `[slot="image"] img`},
			"badge":              {`merch-badge`, `[slot="badge"]`, `.badge`},
			"subtitle":           {`[slot="subtitle"]`, `h5[slot="body-xxs"]`},
			"promoText":          {`[slot="promo-text"]`, `p.promo-text`},
			"callout":            {`[slot="callout-content"]`, `.callout-content`},
			"quantitySelect":     {`merch-quantity-select`, `[slot="quantity-select"]`},
			"secureLabel":        {`.secure-transaction-label`, `[slot="secure-transaction-label"]`},
			"checkboxLabel":      {`[slot="checkbox-label"]`, `merch-addon`},
		},
		Surfaces: map[string]string{
			"ccd-":      "ccd",
			"ah-":       "adobe-home",
			"fries":     "commerce",
			"commerce-": "commerce",
			"plans":     "acom",
		},
	}
}
