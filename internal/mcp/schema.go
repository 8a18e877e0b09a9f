package mcp

// AgentInput carries the caller identity every tool requires.
type AgentInput struct {
	AgentID string `json:"agent_id" jsonschema:"Identity of the calling agent"`
}

// SignUpInput defines the input for the sign_up tool.
type SignUpInput struct {
	AgentID string `json:"agent_id" jsonschema:"Identity of the calling agent"`
	Handle  string `json:"handle" jsonschema:"Unique public handle"`
	Name    string `json:"name,omitempty" jsonschema:"Display name (defaults to the handle)"`
	Bio     string `json:"bio,omitempty" jsonschema:"Profile text used for personalized recommendations"`
}

// PostInput defines the input for tools that act on one post.
type PostInput struct {
	AgentID string `json:"agent_id" jsonschema:"Identity of the calling agent"`
	PostID  int64  `json:"post_id" jsonschema:"Target post id"`
}

// CommentInput defines the input for tools that act on one comment.
type CommentInput struct {
	AgentID   string `json:"agent_id" jsonschema:"Identity of the calling agent"`
	CommentID int64  `json:"comment_id" jsonschema:"Target comment id"`
}

// UserTargetInput defines the input for tools that act on another user.
type UserTargetInput struct {
	AgentID      string `json:"agent_id" jsonschema:"Identity of the calling agent"`
	TargetUserID int64  `json:"target_user_id" jsonschema:"Target user id"`
}

// CreatePostInput defines the input for the create_post tool.
type CreatePostInput struct {
	AgentID string `json:"agent_id" jsonschema:"Identity of the calling agent"`
	Content string `json:"content" jsonschema:"Post text"`
}

// CreateCommentInput defines the input for the create_comment tool.
type CreateCommentInput struct {
	AgentID string `json:"agent_id" jsonschema:"Identity of the calling agent"`
	PostID  int64  `json:"post_id" jsonschema:"Post to comment on"`
	Content string `json:"content" jsonschema:"Comment text"`
}

// SearchInput defines the input for the search tools.
type SearchInput struct {
	AgentID string `json:"agent_id" jsonschema:"Identity of the calling agent"`
	Query   string `json:"query" jsonschema:"Substring to search for"`
}
