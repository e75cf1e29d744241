package reputation

// Permission names carried by ranks. Sets are cumulative: each level keeps
// everything the previous one had.
const (
	PermChat      = "chat"
	PermVoice     = "voice"
	PermReactions = "reactions"
	PermJokes     = "jokes"
	PermGames     = "games"
	PermMentions  = "mentions"
	PermModerate  = "moderate"
	PermWarn      = "warn"
	PermMute      = "mute"
	PermKick      = "kick"
	PermBan       = "ban"
)

const (
	MinLevel = 1
	MaxLevel = 10

	// ChatAdminLevel is the effective rank floor granted to bot-local
	// conversation admins.
	ChatAdminLevel = 8
)

// Rank is one tier of the static rank table.
type Rank struct {
	Level       int
	Name        string
	Experience  int
	Permissions []string
}

// ranks is ordered by level. Permission sets grow one capability at a time.
var ranks = []Rank{
	{1, "Новичок", 0, perms(PermChat)},
	{2, "Активный", 100, perms(PermChat, PermVoice)},
	{3, "Болтун", 300, perms(PermChat, PermVoice, PermReactions)},
	{4, "Шутник", 600, perms(PermChat, PermVoice, PermReactions, PermJokes)},
	{5, "Меткий", 1000, perms(PermChat, PermVoice, PermReactions, PermJokes, PermGames)},
	{6, "Звезда", 1500, perms(PermChat, PermVoice, PermReactions, PermJokes, PermGames, PermMentions)},
	{7, "Легенда", 2500, perms(PermChat, PermVoice, PermReactions, PermJokes, PermGames, PermMentions, PermModerate)},
	{8, "Король", 4000, perms(PermChat, PermVoice, PermReactions, PermJokes, PermGames, PermMentions, PermModerate, PermWarn)},
	{9, "Алмаз", 6000, perms(PermChat, PermVoice, PermReactions, PermJokes, PermGames, PermMentions, PermModerate, PermWarn, PermMute)},
	{10, "Космос", 10000, perms(PermChat, PermVoice, PermReactions, PermJokes, PermGames, PermMentions, PermModerate, PermWarn, PermMute, PermKick, PermBan)},
}

func perms(p ...string) []string { return p }

// RankByLevel returns the rank for a level, clamping out-of-range values.
func RankByLevel(level int) Rank {
	if level < MinLevel {
		level = MinLevel
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return ranks[level-1]
}

// RankForExperience derives a rank from accumulated experience by scanning
// thresholds from highest to lowest.
func RankForExperience(exp int) Rank {
	for i := len(ranks) - 1; i >= 0; i-- {
		if exp >= ranks[i].Experience {
			return ranks[i]
		}
	}
	return ranks[0]
}

// AllRanks returns the full table in level order.
func AllRanks() []Rank {
	out := make([]Rank, len(ranks))
	copy(out, ranks)
	return out
}

// Has reports whether the rank's permission set contains perm.
func (r Rank) Has(perm string) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// NextExperience returns the threshold of the next level, or 0 at the top.
func (r Rank) NextExperience() int {
	if r.Level >= MaxLevel {
		return 0
	}
	return ranks[r.Level].Experience
}
