package ui

// Banner returns the ASCII art banner for a theme.
func Banner(t Theme) string {
	if art, ok := banners[t]; ok {
		return art
	}
	return banners[ThemeCyberpunk]
}

// LoaderFrames returns the animation frames shown while a request is in
// flight.
func LoaderFrames(t Theme) []string {
	switch t {
	case ThemeOcean:
		return []string{"~", "~~", "~~~", "~~~~", "~~~", "~~"}
	case ThemeForest:
		return []string{".", "..", "...", "....", "...", ".."}
	case ThemeSunset:
		return []string{"*", "**", "***", "****", "***", "**"}
	default:
		return []string{"|", "/", "-", "\\"}
	}
}

var banners = map[Theme]string{
	ThemeCyberpunk: `
   ___ ___  _  _ _____ _____  _____ _____
  / __/ _ \| \| |_   _| __\ \/ /_  |___  |
 | (_| (_) | .` + "`" + ` | | | | _| >  <  / /   / /
  \___\___/|_|\_| |_| |___/_/\_\/_/   /_/
          n e o n   t e r m i n a l`,
	ThemeOcean: `
   ____ ___  _  _ _____ _____  _____ _____
  / ___/ _ \| \| |_   _| ____|\ \/ /___  |
 | |  | | | |  \| | | | |  _|  \  /   / /
 | |__| |_| | |\  | | | | |___ /  \  / /
  \____\___/|_| \_| |_| |_____/_/\_\/_/
        ~ deep sea retrieval ~`,
	ThemeForest: `
   ____ ___  _  _ _____ _____ __  __ _____
  / ___/ _ \| \| |_   _| ____|\ \/ /|___  |
 | |  | | | |  \| | | | |  _|  \  /    / /
  \____\___/|_|\_| |_| |_____|/_/\_\  /_/
        { rooted in documents }`,
	ThemeSunset: `
   ____ ___  _  _ _____ _____ __  __ _____
  / ___/ _ \| \| |_   _| ____|\ \/ /|___  |
 | |__| |_| |  \| | | | |___   \  /    / /
  \____\___/|_|\_| |_| |_____|/_/\_\  /_/
        -- golden hour answers --`,
}
