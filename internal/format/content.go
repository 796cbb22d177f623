package format

import (
	"fmt"
	"html"
	"strings"

	"eventcal/internal/model"
)

// Content is the rich text attached to a calendar entry.
type Content struct {
	Description string
	HTMLContent string
}

const (
	spawnsCaption  = "Spawns: "
	shiniesCaption = "Potential Shinies: "
	bossesCaption  = "Bosses: "

	galleryRowStyle = "display: flex; justify-content: space-between; flex-wrap: wrap;"
	imageSeparator  = "&nbsp;"
)

func formatSpotlight(s model.Spotlight) Content {
	spawns := plainSpawns(s.List)
	shinies := shinySpawns(s.List)

	lines := []string{"Bonus: " + s.Bonus, nameList(spawnsCaption, spawns)}
	if len(shinies) > 0 {
		lines = append(lines, nameList(shiniesCaption, shinies))
	}

	var b strings.Builder
	b.WriteString("<h3>" + html.EscapeString(s.Bonus) + "</h3>")
	b.WriteString(spawnGallery(spawnsCaption, spawns))
	if len(shinies) > 0 {
		b.WriteString(spawnGallery(shiniesCaption, shinies))
	}

	return Content{
		Description: strings.Join(lines, "\n"),
		HTMLContent: b.String(),
	}
}

func formatRaidBattles(r model.RaidBattles) Content {
	bosses := plainSpawns(r.Bosses)

	lines := []string{nameList(bossesCaption, bosses)}
	if len(r.Shinies) > 0 {
		lines = append(lines, nameList(shiniesCaption, r.Shinies))
	}

	var b strings.Builder
	b.WriteString(spawnGallery(bossesCaption, bosses))
	if len(r.Shinies) > 0 {
		b.WriteString(spawnGallery(shiniesCaption, r.Shinies))
	}

	return Content{
		Description: strings.Join(lines, "\n"),
		HTMLContent: b.String(),
	}
}

// formatCommunityDay lists spawns, shinies, bonuses and disclaimers in that
// order. Special research is not rendered.
func formatCommunityDay(c model.CommunityDay) Content {
	lines := []string{nameList(spawnsCaption, c.Spawns)}
	if len(c.Shinies) > 0 {
		lines = append(lines, nameList(shiniesCaption, c.Shinies))
	}
	if len(c.Bonuses) > 0 {
		lines = append(lines, "Bonuses:")
		for _, bonus := range c.Bonuses {
			lines = append(lines, "  "+bonus.Text)
		}
	}
	lines = append(lines, c.BonusDisclaimers...)

	var b strings.Builder
	b.WriteString(spawnGallery(spawnsCaption, c.Spawns))
	if len(c.Shinies) > 0 {
		b.WriteString(spawnGallery(shiniesCaption, c.Shinies))
	}
	b.WriteString(bonusGallery(c.Bonuses))

	disclaimers := make([]string, 0, len(c.BonusDisclaimers))
	for _, d := range c.BonusDisclaimers {
		disclaimers = append(disclaimers, "<p>"+html.EscapeString(d)+"</p>")
	}
	b.WriteString(strings.Join(disclaimers, imageSeparator))

	return Content{
		Description: strings.Join(lines, "\n"),
		HTMLContent: b.String(),
	}
}

func nameList(prefix string, spawns []model.Spawn) string {
	names := make([]string, 0, len(spawns))
	for _, s := range spawns {
		names = append(names, s.Name)
	}
	return prefix + strings.Join(names, ", ")
}

func plainSpawns(list []model.ShinySpawn) []model.Spawn {
	out := make([]model.Spawn, 0, len(list))
	for _, s := range list {
		out = append(out, s.Spawn)
	}
	return out
}

func shinySpawns(list []model.ShinySpawn) []model.Spawn {
	var out []model.Spawn
	for _, s := range list {
		if s.CanBeShiny {
			out = append(out, s.Spawn)
		}
	}
	return out
}

func spawnGallery(caption string, spawns []model.Spawn) string {
	images := make([]string, 0, len(spawns))
	for _, s := range spawns {
		images = append(images, imageTag(s.Image, s.Name))
	}
	return figure(caption, strings.Join(images, imageSeparator))
}

func bonusGallery(bonuses []model.Bonus) string {
	if len(bonuses) == 0 {
		return ""
	}

	items := make([]string, 0, len(bonuses))
	for _, bonus := range bonuses {
		items = append(items, fmt.Sprintf(
			`<div style="max-width: 100px; text-align: center;"><figure>%s<figcaption>%s</figcaption></figure></div>`,
			imageTag(bonus.Image, bonus.Text), html.EscapeString(bonus.Text),
		))
	}

	return `<p><b>Bonuses:</b></p>` +
		`<div style="` + galleryRowStyle + `">` + strings.Join(items, imageSeparator) + `</div>`
}

func figure(caption, images string) string {
	return `<figure><figcaption><b>` + html.EscapeString(caption) + `</b></figcaption>` +
		`<div style="` + galleryRowStyle + `">` + images + `</div></figure>`
}

func imageTag(src, alt string) string {
	return fmt.Sprintf(`<img src="%s" alt="%s"/>`, html.EscapeString(src), html.EscapeString(alt))
}

func backLink(link, label string) string {
	return fmt.Sprintf(`<p>See also: <a href="%s">%s</a></p>`, html.EscapeString(link), html.EscapeString(label))
}
