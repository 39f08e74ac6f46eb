package posts

import (
	"errors"
	"strconv"
	"time"
)

// VoteLimit is the most upvotes a single user may put on one post.
const VoteLimit = 5

var (
	ErrNotFound  = errors.New("post not found")
	ErrVoteLimit = errors.New("maximum upvotes reached")
)

type SortOrder string

const (
	SortLatest SortOrder = "latest"
	SortVotes  SortOrder = "votes"
)

type Post struct {
	ID       interface{}    `bson:"_id,omitempty"`
	Title    string         `bson:"title"`
	Summary  string         `bson:"summary"`
	Content  string         `bson:"content"`
	Cover    string         `bson:"cover"`
	AuthorID int64          `bson:"authorID"`
	Upvotes  int64          `bson:"upvotes"`
	Votes    map[string]int `bson:"votes"`
	Created  time.Time      `bson:"createdAt"`
	Updated  time.Time      `bson:"updatedAt"`
}

// VoterKey is the ledger key for a user inside Post.Votes.
func VoterKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// VoterCount returns how many upvotes the user has put on the post,
// 0 when there is no ledger entry.
func (p *Post) VoterCount(userID int64) int {
	return p.Votes[VoterKey(userID)]
}
