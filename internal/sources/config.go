package sources

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/models"
)

const (
	videoStaleCeiling = 6 * time.Hour
	postStaleCeiling  = 6 * time.Hour
	chainStaleCeiling = 24 * time.Hour
)

// Roster is the static list of configured sources.
type Roster struct {
	Sources []models.Source `koanf:"sources" validate:"dive"`
}

// Enabled returns the enabled sources in roster order.
func (r *Roster) Enabled() []models.Source {
	out := make([]models.Source, 0, len(r.Sources))
	for _, s := range r.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of enabled sources per category.
func (r *Roster) Count(cat models.Category) int {
	n := 0
	for _, s := range r.Enabled() {
		if s.Category() == cat {
			n++
		}
	}
	return n
}

// LoadRoster reads a YAML roster. Entries default to enabled with weight 0.5
// and a ceiling chosen by kind.
func LoadRoster(path string) (*Roster, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	roster := &Roster{}
	for i, sub := range k.Slices("sources") {
		src := models.Source{Enabled: true, Weight: 0.5}
		if err := sub.Unmarshal("", &src); err != nil {
			return nil, fmt.Errorf("failed to parse roster entry %d: %w", i, err)
		}
		applySourceDefaults(&src)
		roster.Sources = append(roster.Sources, src)
	}

	if err := ValidateRoster(roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// ValidateRoster checks field constraints and key uniqueness.
func ValidateRoster(r *Roster) error {
	if len(r.Sources) == 0 {
		return fmt.Errorf("roster has no sources")
	}
	if err := validator.New().Struct(r); err != nil {
		return fmt.Errorf("invalid roster: %w", err)
	}
	seen := make(map[string]bool, len(r.Sources))
	for _, s := range r.Sources {
		if seen[s.Key] {
			return fmt.Errorf("invalid roster: duplicate source key %q", s.Key)
		}
		seen[s.Key] = true
		switch s.Kind {
		case models.KindAPI, models.KindChain:
			if s.Handle == "" {
				return fmt.Errorf("invalid roster: source %q needs a handle", s.Key)
			}
		case models.KindSyndication:
			if s.FeedURL == "" {
				return fmt.Errorf("invalid roster: source %q needs a feed_url", s.Key)
			}
		}
	}
	return nil
}

func applySourceDefaults(s *models.Source) {
	if s.StaleCeiling == 0 {
		switch {
		case s.Kind == models.KindChain:
			s.StaleCeiling = chainStaleCeiling
		case s.Media == models.MediaVideo:
			s.StaleCeiling = videoStaleCeiling
		default:
			s.StaleCeiling = postStaleCeiling
		}
	}
	if s.Platform == "" {
		switch s.Kind {
		case models.KindAPI:
			s.Platform = "x"
		case models.KindSyndication:
			s.Platform = "youtube"
		}
	}
}

// FindRosterConfig searches for sources.yaml in common locations
func FindRosterConfig() string {
	locations := []string{
		"sources.yaml",
		"config/sources.yaml",
		"../sources.yaml",
		"/app/sources.yaml",
	}

	if envPath := os.Getenv("SOURCES_CONFIG_PATH"); envPath != "" {
		locations = append([]string{envPath}, locations...)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			absPath, _ := filepath.Abs(loc)
			return absPath
		}
	}

	return ""
}

// CreateFetchersFromRoster builds one fetcher per enabled source.
func CreateFetchersFromRoster(roster *Roster, client Getter, normalizer *Normalizer, config FetcherConfig, logger *logging.Logger) []Fetcher {
	fetchers := make([]Fetcher, 0, len(roster.Sources))

	for _, src := range roster.Enabled() {
		var fetcher Fetcher
		switch src.Kind {
		case models.KindAPI:
			fetcher = NewSocialFetcher(src, client, normalizer, config)
		case models.KindSyndication:
			fetcher = NewSyndicationFetcher(src, client, normalizer, config)
		case models.KindChain:
			fetcher = NewChainFetcher(src, ChainStrategies(src, client, config), normalizer, config, logger)
		default:
			continue
		}
		fetchers = append(fetchers, fetcher)
	}

	return fetchers
}

// ChainStrategies returns the fallback order for a chain source: proxy feed,
// alternate proxy path, direct page scrape, remote snapshot, bundled item.
func ChainStrategies(src models.Source, client Getter, config FetcherConfig) []Strategy {
	proxy := src.FeedURL
	if proxy == "" {
		proxy = fmt.Sprintf("%s/rumble.com/c/%s", config.ProxyBase, src.Handle)
	}
	altProxy := fmt.Sprintf("%s/rumble.com/user/%s", config.ProxyBase, src.Handle)
	if strings.Contains(proxy, "/user/") {
		altProxy = strings.Replace(proxy, "/user/", "/c/", 1)
	}
	page := fmt.Sprintf("%s/c/%s", config.PageBase, src.Handle)

	strategies := []Strategy{
		NewDocumentStrategy("proxy", proxy, client, NewFeedExtractor()),
		NewDocumentStrategy("proxy-alt", altProxy, client, NewFeedExtractor()),
		NewDocumentStrategy("page", page, client, NewPageExtractor(ChainPageRule(config.PageBase))),
	}
	if config.SnapshotURL != "" {
		strategies = append(strategies, NewDocumentStrategy("snapshot", config.SnapshotURL, client,
			NewSnapshotExtractor(src.Handle, src.StaleCeiling, config.Now)))
	}
	return append(strategies, NewBundledStrategy(src.Handle))
}

type rosterEntry struct {
	key      string
	name     string
	handle   string
	audience int
}

// audienceWeight maps an audience size onto 0.3..1 on a log scale, so a
// channel ten times larger gains 0.1.
func audienceWeight(audience int) float64 {
	if audience <= 0 {
		return 0.5
	}
	w := 0.4 + 0.1*math.Log10(float64(audience)/10000)
	w = math.Max(0.3, math.Min(1, w))
	return math.Round(w*100) / 100
}

// DefaultRoster returns the built-in roster used when no file is found.
func DefaultRoster() *Roster {
	accounts := []rosterEntry{
		{"x-tuckercarlson", "Tucker Carlson", "TuckerCarlson", 17000000},
		{"x-endwokeness", "End Wokeness", "EndWokeness", 3200000},
		{"x-marionawfal", "Mario Nawfal", "MarioNawfal", 2800000},
		{"x-ggreenwald", "Glenn Greenwald", "ggreenwald", 2100000},
		{"x-shellenberger", "Michael Shellenberger", "shellenberger", 2000000},
		{"x-bretweinstein", "Bret Weinstein", "BretWeinstein", 1800000},
		{"x-vigilantfox", "Vigilant Fox", "VigilantFox", 1500000},
		{"x-wallstreetapes", "Wall Street Apes", "WallStreetApes", 1200000},
		{"x-jimmy_dore", "Jimmy Dore", "jimmy_dore", 1200000},
		{"x-nickjfuentes", "Nick Fuentes", "NickJFuentes", 1100000},
		{"x-afpost", "AF Post", "AFpost", 800000},
		{"x-owenshroyer1776", "Owen Shroyer", "OwenShroyer1776", 800000},
		{"x-realstewpeters", "Stew Peters", "realstewpeters", 700000},
		{"x-comicdavesmith", "Dave Smith", "ComicDaveSmith", 600000},
		{"x-theyoungturks", "The Young Turks", "TheYoungTurks", 600000},
		{"x-thegrayzonenews", "The Grayzone", "TheGrayzoneNews", 500000},
		{"x-dropsitenews", "Drop Site News", "DropSiteNews", 400000},
		{"x-judgenap", "Judge Napolitano", "JudgeNap", 300000},
	}
	channels := []rosterEntry{
		{"yt-UCzQUP1qoWDoEbmsQxvdjxgQ", "Joe Rogan", "UCzQUP1qoWDoEbmsQxvdjxgQ", 19000000},
		{"yt-UCGttrUON87gWfU6dMWm1fcA", "Tucker Carlson", "UCGttrUON87gWfU6dMWm1fcA", 14000000},
		{"yt-UC1yBKRuGpC1tSM73A0ZjYjQ", "The Young Turks", "UC1yBKRuGpC1tSM73A0ZjYjQ", 5000000},
		{"yt-UCoJhK5kMc4LjBKdiYrDtzlA", "Redacted", "UCoJhK5kMc4LjBKdiYrDtzlA", 2840000},
		{"yt-UCDRIjKy6eZOvKtOELtTdeUA", "Breaking Points", "UCDRIjKy6eZOvKtOELtTdeUA", 2100000},
		{"yt-UC4woSp8ITBoYDmjkukhEhxg", "Tim Dillon", "UC4woSp8ITBoYDmjkukhEhxg", 1800000},
		{"yt-UCL0u5uz7KZ9q-pe-VC8TY-w", "Candace Owens", "UCL0u5uz7KZ9q-pe-VC8TY-w", 1760000},
		{"yt-UCjjBjVc0b1cIpNGEeZtS2lg", "TCN", "UCjjBjVc0b1cIpNGEeZtS2lg", 1500000},
		{"yt-UC3M7l8ved_rYQ45AVzS0RGA", "Jimmy Dore", "UC3M7l8ved_rYQ45AVzS0RGA", 1300000},
		{"yt-UCCgpGpylCfrJIV-RwA_L7tg", "Ian Carroll", "UCCgpGpylCfrJIV-RwA_L7tg", 1200000},
		{"yt-UCi5N_uAqApEUIlg32QzkPlg", "Bret Weinstein", "UCi5N_uAqApEUIlg32QzkPlg", 900000},
		{"yt-UCoJTOwZxbvq8Al8Qat2zgTA", "Kim Iversen", "UCoJTOwZxbvq8Al8Qat2zgTA", 722000},
		{"yt-UCEfe80CP2cs1eLRNQazffZw", "Dave Smith", "UCEfe80CP2cs1eLRNQazffZw", 400000},
		{"yt-UChzVhAwzGR7hV-4O8ZmBLHg", "Glenn Greenwald", "UChzVhAwzGR7hV-4O8ZmBLHg", 350000},
		{"yt-UCEXR8pRTkE2vFeJePNe9UcQ", "The Grayzone", "UCEXR8pRTkE2vFeJePNe9UcQ", 300000},
		{"yt-UCcE1-IiX4fLqbbVjPx0Bnag", "Owen Shroyer", "UCcE1-IiX4fLqbbVjPx0Bnag", 60000},
	}
	rumble := []rosterEntry{
		{"rumble-nickjfuentes", "Nick Fuentes", "nickjfuentes", 200000},
		{"rumble-stewpeters", "Stew Peters", "StewPeters", 400000},
	}

	roster := &Roster{}
	for _, a := range accounts {
		roster.Sources = append(roster.Sources, models.Source{
			Key: a.key, Name: a.name, Kind: models.KindAPI, Media: models.MediaText, Platform: "x",
			Handle: a.handle, Weight: audienceWeight(a.audience), Quota: 5, SingleItem: true, Enabled: true,
		})
	}
	for _, c := range channels {
		roster.Sources = append(roster.Sources, models.Source{
			Key: c.key, Name: c.name, Kind: models.KindSyndication, Media: models.MediaVideo, Platform: "youtube",
			Handle: c.handle, FeedURL: YouTubeFeedURL(c.handle), Weight: audienceWeight(c.audience), Quota: 3, Enabled: true,
		})
	}
	for _, r := range rumble {
		roster.Sources = append(roster.Sources, models.Source{
			Key: r.key, Name: r.name, Kind: models.KindChain, Media: models.MediaVideo, Platform: "rumble",
			Handle: r.handle, Weight: audienceWeight(r.audience), Quota: 1, SingleItem: true, Enabled: true,
		})
	}
	for i := range roster.Sources {
		applySourceDefaults(&roster.Sources[i])
	}
	return roster
}
