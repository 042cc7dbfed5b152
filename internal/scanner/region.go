package scanner

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/a11yscan/a11yscan/internal/model"
)

// landmarkSelector matches any landmark element, by tag or ARIA role.
const landmarkSelector = `header, nav, footer, aside, main, ` +
	`[role="banner"], [role="navigation"], [role="contentinfo"], ` +
	`[role="complementary"], [role="main"]`

// rolesToRegions maps ARIA landmark roles to regions. Roles win over
// tags: <div role="navigation"> is a nav landmark regardless of its tag.
var rolesToRegions = map[string]model.Region{
	"banner":        model.RegionHeader,
	"navigation":    model.RegionNav,
	"contentinfo":   model.RegionFooter,
	"complementary": model.RegionAside,
	"main":          model.RegionMain,
}

// tagsToRegions maps landmark element names to regions.
var tagsToRegions = map[string]model.Region{
	"header": model.RegionHeader,
	"nav":    model.RegionNav,
	"footer": model.RegionFooter,
	"aside":  model.RegionAside,
	"main":   model.RegionMain,
}

// classifyRegion resolves a target selector back to its element and
// returns the nearest enclosing landmark region. It returns the empty
// region when the element sits outside every landmark or the selector
// no longer resolves.
func classifyRegion(doc *goquery.Document, target string) model.Region {
	sel := doc.Find(target).First()
	if sel.Length() == 0 {
		return ""
	}

	landmark := sel.Closest(landmarkSelector)
	if landmark.Length() == 0 {
		return ""
	}

	if role, ok := landmark.Attr("role"); ok {
		if region, ok := rolesToRegions[role]; ok {
			return region
		}
	}
	if region, ok := tagsToRegions[goquery.NodeName(landmark)]; ok {
		return region
	}
	return ""
}
