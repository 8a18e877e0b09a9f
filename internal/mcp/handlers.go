package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mimus-sim/mimus/internal/action"
)

// registerTools registers all platform actions as MCP tools.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_sign_up",
		Description: "Register the agent as a platform user with a unique handle",
	}, s.handleSignUp)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_create_post",
		Description: "Publish a new post",
	}, s.handleCreatePost)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_repost",
		Description: "Repost an existing post; the repost always references the root original",
	}, s.postTool(action.TypeRepost))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_like_post",
		Description: "Like a post",
	}, s.postTool(action.TypeLike))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_unlike_post",
		Description: "Remove a previous like from a post",
	}, s.postTool(action.TypeUnlike))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_dislike_post",
		Description: "Dislike a post",
	}, s.postTool(action.TypeDislike))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_undo_dislike_post",
		Description: "Remove a previous dislike from a post",
	}, s.postTool(action.TypeUndoDislike))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_create_comment",
		Description: "Comment on a post",
	}, s.handleCreateComment)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_like_comment",
		Description: "Like a comment",
	}, s.commentTool(action.TypeLikeComment))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_unlike_comment",
		Description: "Remove a previous like from a comment",
	}, s.commentTool(action.TypeUnlikeComment))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_dislike_comment",
		Description: "Dislike a comment",
	}, s.commentTool(action.TypeDislikeComment))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_undo_dislike_comment",
		Description: "Remove a previous dislike from a comment",
	}, s.commentTool(action.TypeUndoDislikeComment))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_follow",
		Description: "Follow another user",
	}, s.userTool(action.TypeFollow))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_unfollow",
		Description: "Stop following a user",
	}, s.userTool(action.TypeUnfollow))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_mute",
		Description: "Mute another user",
	}, s.userTool(action.TypeMute))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_unmute",
		Description: "Unmute a user",
	}, s.userTool(action.TypeUnmute))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_search_users",
		Description: "Search user handles, names, and bios",
	}, s.searchTool(action.TypeSearchUser))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_search_posts",
		Description: "Search post content",
	}, s.searchTool(action.TypeSearchPosts))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_trend",
		Description: "Get the most-liked recent posts",
	}, s.agentTool(action.TypeTrend))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_refresh",
		Description: "Get a fresh personalized feed of recommended posts",
	}, s.agentTool(action.TypeRefresh))

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mimus_do_nothing",
		Description: "Explicitly pass this turn without acting",
	}, s.agentTool(action.TypeDoNothing))
}

// do submits one action on behalf of an agent and waits for the result.
// Platform failures are ordinary results, not protocol errors; only a
// broken channel surfaces as an error to the MCP client.
func (s *Server) do(ctx context.Context, agentID string, typ action.Type, payload action.Payload) (*sdk.CallToolResult, action.Result, error) {
	id, err := s.ch.Submit(action.Request{CallerID: agentID, Type: typ, Payload: payload})
	if err != nil {
		return nil, action.Result{}, fmt.Errorf("submitting %s: %w", typ, err)
	}

	res, err := s.ch.Await(ctx, id)
	if err != nil {
		return nil, action.Result{}, fmt.Errorf("awaiting %s: %w", typ, err)
	}
	return nil, res, nil
}

func (s *Server) handleSignUp(ctx context.Context, req *sdk.CallToolRequest, in SignUpInput) (*sdk.CallToolResult, action.Result, error) {
	return s.do(ctx, in.AgentID, action.TypeSignUp, action.Payload{
		Handle: in.Handle,
		Name:   in.Name,
		Bio:    in.Bio,
	})
}

func (s *Server) handleCreatePost(ctx context.Context, req *sdk.CallToolRequest, in CreatePostInput) (*sdk.CallToolResult, action.Result, error) {
	return s.do(ctx, in.AgentID, action.TypeCreatePost, action.Payload{Content: in.Content})
}

func (s *Server) handleCreateComment(ctx context.Context, req *sdk.CallToolRequest, in CreateCommentInput) (*sdk.CallToolResult, action.Result, error) {
	return s.do(ctx, in.AgentID, action.TypeCreateComment, action.Payload{PostID: in.PostID, Content: in.Content})
}

// postTool builds a handler for actions addressed at a post.
func (s *Server) postTool(typ action.Type) func(context.Context, *sdk.CallToolRequest, PostInput) (*sdk.CallToolResult, action.Result, error) {
	return func(ctx context.Context, req *sdk.CallToolRequest, in PostInput) (*sdk.CallToolResult, action.Result, error) {
		return s.do(ctx, in.AgentID, typ, action.Payload{PostID: in.PostID})
	}
}

// commentTool builds a handler for actions addressed at a comment.
func (s *Server) commentTool(typ action.Type) func(context.Context, *sdk.CallToolRequest, CommentInput) (*sdk.CallToolResult, action.Result, error) {
	return func(ctx context.Context, req *sdk.CallToolRequest, in CommentInput) (*sdk.CallToolResult, action.Result, error) {
		return s.do(ctx, in.AgentID, typ, action.Payload{CommentID: in.CommentID})
	}
}

// userTool builds a handler for actions addressed at another user.
func (s *Server) userTool(typ action.Type) func(context.Context, *sdk.CallToolRequest, UserTargetInput) (*sdk.CallToolResult, action.Result, error) {
	return func(ctx context.Context, req *sdk.CallToolRequest, in UserTargetInput) (*sdk.CallToolResult, action.Result, error) {
		return s.do(ctx, in.AgentID, typ, action.Payload{TargetUserID: in.TargetUserID})
	}
}

// searchTool builds a handler for the query-based actions.
func (s *Server) searchTool(typ action.Type) func(context.Context, *sdk.CallToolRequest, SearchInput) (*sdk.CallToolResult, action.Result, error) {
	return func(ctx context.Context, req *sdk.CallToolRequest, in SearchInput) (*sdk.CallToolResult, action.Result, error) {
		return s.do(ctx, in.AgentID, typ, action.Payload{Query: in.Query})
	}
}

// agentTool builds a handler for actions that need only the caller.
func (s *Server) agentTool(typ action.Type) func(context.Context, *sdk.CallToolRequest, AgentInput) (*sdk.CallToolResult, action.Result, error) {
	return func(ctx context.Context, req *sdk.CallToolRequest, in AgentInput) (*sdk.CallToolResult, action.Result, error) {
		return s.do(ctx, in.AgentID, typ, action.Payload{})
	}
}
