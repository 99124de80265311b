package app

import (
	"time"

	"dosync/api/internal/rbac"
	"dosync/api/internal/store"

	"github.com/graphql-go/graphql"
)

// buildSchema wires the GraphQL surface to the service. Resolvers are thin:
// pull the session from context, coerce arguments, dispatch to the service.
func buildSchema(svc *Service) (graphql.Schema, error) {
	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"email":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"fullName":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"role":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"status":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"emailVerified": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"createdAt":     &graphql.Field{Type: graphql.DateTime},
		},
	})

	teamMemberType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TeamMember",
		Fields: graphql.Fields{
			"teamId":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"userId":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"role":     &graphql.Field{Type: graphql.String},
			"fullName": &graphql.Field{Type: graphql.String},
			"email":    &graphql.Field{Type: graphql.String},
		},
	})

	teamType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Team",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"createdAt": &graphql.Field{Type: graphql.DateTime},
			"members": &graphql.Field{
				Type: graphql.NewList(teamMemberType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					team, ok := p.Source.(store.Team)
					if !ok {
						return nil, nil
					}
					full, err := svc.Team(p.Context, session, team.ID)
					if err != nil {
						return nil, err
					}
					return full.Members, nil
				},
			},
		},
	})

	checklistItemType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ChecklistItem",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"taskId":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"title":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"done":      &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"createdAt": &graphql.Field{Type: graphql.DateTime},
		},
	})

	commentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Comment",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"taskId":     &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"authorId":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"authorName": &graphql.Field{Type: graphql.String},
			"body":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"createdAt":  &graphql.Field{Type: graphql.DateTime},
			"updatedAt":  &graphql.Field{Type: graphql.DateTime},
		},
	})

	taskType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Task",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"bucketId":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"title":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"description": &graphql.Field{Type: graphql.String},
			"dueDate":     &graphql.Field{Type: graphql.DateTime},
			"completed":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"assigneeId":  &graphql.Field{Type: graphql.ID},
			"position":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"createdAt":   &graphql.Field{Type: graphql.DateTime},
			"updatedAt":   &graphql.Field{Type: graphql.DateTime},
			"checklist": &graphql.Field{
				Type: graphql.NewList(checklistItemType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					task, ok := p.Source.(store.Task)
					if !ok {
						return nil, nil
					}
					return svc.Checklist(p.Context, session, task.ID)
				},
			},
			"comments": &graphql.Field{
				Type: graphql.NewList(commentType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					task, ok := p.Source.(store.Task)
					if !ok {
						return nil, nil
					}
					return svc.Comments(p.Context, session, task.ID)
				},
			},
		},
	})

	bucketType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bucket",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"userId":   &graphql.Field{Type: graphql.ID},
			"teamId":   &graphql.Field{Type: graphql.ID},
			"position": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"tasks":    &graphql.Field{Type: graphql.NewList(taskType)},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"token":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"refreshToken": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"userId":       &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"email":        &graphql.Field{Type: graphql.String},
			"fullName":     &graphql.Field{Type: graphql.String},
			"role":         &graphql.Field{Type: graphql.String},
			"expiresAt":    &graphql.Field{Type: graphql.DateTime},
		},
	})

	signUpResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SignUpResult",
		Fields: graphql.Fields{
			"userId":              &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"requiresEmailVerify": &graphql.Field{Type: graphql.Boolean},
			// Dev bypass: only populated when no SMTP server is configured.
			"devVerificationToken": &graphql.Field{Type: graphql.String},
		},
	})

	bucketStatType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BucketStat",
		Fields: graphql.Fields{
			"bucketId":  &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":      &graphql.Field{Type: graphql.String},
			"total":     &graphql.Field{Type: graphql.Int},
			"completed": &graphql.Field{Type: graphql.Int},
		},
	})

	analyticsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AnalyticsReport",
		Fields: graphql.Fields{
			"totalTasks":     &graphql.Field{Type: graphql.Int},
			"completedTasks": &graphql.Field{Type: graphql.Int},
			"overdueTasks":   &graphql.Field{Type: graphql.Int},
			"comments":       &graphql.Field{Type: graphql.Int},
			"buckets":        &graphql.Field{Type: graphql.NewList(bucketStatType)},
		},
	})

	searchResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SearchResult",
		Fields: graphql.Fields{
			"taskId":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"title":    &graphql.Field{Type: graphql.String},
			"snippet":  &graphql.Field{Type: graphql.String},
			"bucketId": &graphql.Field{Type: graphql.ID},
		},
	})

	searchResponseType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SearchResponse",
		Fields: graphql.Fields{
			"results": &graphql.Field{Type: graphql.NewList(searchResultType)},
			"total":   &graphql.Field{Type: graphql.Int},
			"query":   &graphql.Field{Type: graphql.String},
		},
	})

	bucketEditInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "BucketEditInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"id":        &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"name":      &graphql.InputObjectFieldConfig{Type: graphql.String},
			"sortOrder": &graphql.InputObjectFieldConfig{Type: graphql.Int},
		},
	})

	taskCreateInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "TaskCreateInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"bucketId":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"title":       &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"description": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"dueDate":     &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
			"assigneeId":  &graphql.InputObjectFieldConfig{Type: graphql.ID},
		},
	})

	taskEditInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "TaskEditInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"id":            &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"bucketId":      &graphql.InputObjectFieldConfig{Type: graphql.ID},
			"sortOrder":     &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"title":         &graphql.InputObjectFieldConfig{Type: graphql.String},
			"description":   &graphql.InputObjectFieldConfig{Type: graphql.String},
			"dueDate":       &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
			"clearDueDate":  &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
			"completed":     &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
			"assigneeId":    &graphql.InputObjectFieldConfig{Type: graphql.ID},
			"clearAssignee": &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"me": &graphql.Field{
				Type: userType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.Me(p.Context, session)
				},
			},
			"users": &graphql.Field{
				Type: graphql.NewList(userType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.Users(p.Context, session)
				},
			},
			"team": &graphql.Field{
				Type: teamType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					full, err := svc.Team(p.Context, session, stringArg(p, "id"))
					if err != nil {
						return nil, err
					}
					return full.Team, nil
				},
			},
			"teams": &graphql.Field{
				Type: graphql.NewList(teamType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.Teams(p.Context, session)
				},
			},
			"buckets": &graphql.Field{
				Type: graphql.NewList(bucketType),
				Args: graphql.FieldConfigArgument{
					"teamId": &graphql.ArgumentConfig{Type: graphql.ID},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.Buckets(p.Context, session, optionalString(p.Args, "teamId"))
				},
			},
			"task": &graphql.Field{
				Type: taskType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.Task(p.Context, session, stringArg(p, "id"))
				},
			},
			"taskSearch": &graphql.Field{
				Type: searchResponseType,
				Args: graphql.FieldConfigArgument{
					"query":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"teamId": &graphql.ArgumentConfig{Type: graphql.ID},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.TaskSearch(p.Context, session,
						stringArg(p, "query"),
						optionalString(p.Args, "teamId"),
						intArg(p, "limit", 20),
						intArg(p, "offset", 0))
				},
			},
			"analytics": &graphql.Field{
				Type: analyticsType,
				Args: graphql.FieldConfigArgument{
					"teamId": &graphql.ArgumentConfig{Type: graphql.ID},
					"days":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 30},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.Analytics(p.Context, session,
						optionalString(p.Args, "teamId"),
						intArg(p, "days", 30))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"signUp": &graphql.Field{
				Type: signUpResultType,
				Args: graphql.FieldConfigArgument{
					"email":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"fullName": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					result, err := svc.SignUp(p.Context, stringArg(p, "email"), stringArg(p, "password"), stringArg(p, "fullName"))
					if err != nil {
						return nil, err
					}
					payload := map[string]interface{}{
						"userId":              result.UserID,
						"requiresEmailVerify": result.RequiresEmailVerify,
					}
					if !svc.SMTPConfigured() {
						payload["devVerificationToken"] = result.VerificationToken
					}
					return payload, nil
				},
			},
			"signIn": &graphql.Field{
				Type: sessionType,
				Args: graphql.FieldConfigArgument{
					"email":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return svc.SignIn(p.Context, stringArg(p, "email"), stringArg(p, "password"))
				},
			},
			"signOut": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"refreshToken": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					token := ""
					if raw, ok := p.Args["refreshToken"].(string); ok {
						token = raw
					}
					return true, svc.SignOut(p.Context, token)
				},
			},
			"refresh": &graphql.Field{
				Type: sessionType,
				Args: graphql.FieldConfigArgument{
					"refreshToken": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return svc.Refresh(p.Context, stringArg(p, "refreshToken"))
				},
			},
			"verifyEmail": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"token": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := svc.VerifyEmail(p.Context, stringArg(p, "token")); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
			"passwordResetRequest": &graphql.Field{
				Type: graphql.String,
				Args: graphql.FieldConfigArgument{
					"email": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					token, err := svc.PasswordResetRequest(p.Context, stringArg(p, "email"))
					if err != nil {
						return nil, err
					}
					// Dev bypass mirrors signUp: token only leaks without SMTP.
					if svc.SMTPConfigured() {
						return "", nil
					}
					return token, nil
				},
			},
			"passwordReset": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"token":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"newPassword": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := svc.PasswordReset(p.Context, stringArg(p, "token"), stringArg(p, "newPassword")); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
			"userEdit": &graphql.Field{
				Type: userType,
				Args: graphql.FieldConfigArgument{
					"id":       &graphql.ArgumentConfig{Type: graphql.ID},
					"fullName": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					userID := ""
					if raw := optionalString(p.Args, "id"); raw != nil {
						userID = *raw
					}
					return svc.UserEdit(p.Context, session, userID, stringArg(p, "fullName"))
				},
			},
			"userRoleEdit": &graphql.Field{
				Type: userType,
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"role": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.UserRoleEdit(p.Context, session, stringArg(p, "id"), stringArg(p, "role"))
				},
			},
			"userArchive": &graphql.Field{
				Type: userType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.ID},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					userID := ""
					if raw := optionalString(p.Args, "id"); raw != nil {
						userID = *raw
					}
					return svc.UserArchive(p.Context, session, userID)
				},
			},
			"teamCreate": &graphql.Field{
				Type: teamType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.TeamCreate(p.Context, session, stringArg(p, "name"))
				},
			},
			"teamEdit": &graphql.Field{
				Type: teamType,
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.TeamEdit(p.Context, session, stringArg(p, "id"), stringArg(p, "name"))
				},
			},
			"teamDelete": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					if err := svc.TeamDelete(p.Context, session, stringArg(p, "id")); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
			"teamUserAdd": &graphql.Field{
				Type: teamMemberType,
				Args: graphql.FieldConfigArgument{
					"teamId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"email":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"role":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(rbac.TeamMember)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					role := string(rbac.TeamMember)
					if raw, ok := p.Args["role"].(string); ok {
						role = raw
					}
					return svc.TeamUserAdd(p.Context, session, stringArg(p, "teamId"), stringArg(p, "email"), role)
				},
			},
			"teamUserEdit": &graphql.Field{
				Type: teamMemberType,
				Args: graphql.FieldConfigArgument{
					"teamId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"userId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"action": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					action := rbac.TeamUserAction(stringArg(p, "action"))
					switch action {
					case rbac.ActionUpgrade, rbac.ActionDowngrade, rbac.ActionRemove:
					default:
						return nil, invalidInput("action must be UPGRADE, DOWNGRADE or REMOVE", nil)
					}
					return svc.TeamUserEdit(p.Context, session, stringArg(p, "teamId"), stringArg(p, "userId"), action)
				},
			},
			"bucketCreate": &graphql.Field{
				Type: bucketType,
				Args: graphql.FieldConfigArgument{
					"name":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"teamId": &graphql.ArgumentConfig{Type: graphql.ID},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.BucketCreate(p.Context, session, stringArg(p, "name"), optionalString(p.Args, "teamId"))
				},
			},
			"bucketEdit": &graphql.Field{
				Type: bucketType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(bucketEditInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					input, ok := p.Args["input"].(map[string]interface{})
					if !ok {
						return nil, invalidInput("input is required", nil)
					}
					return svc.BucketEdit(p.Context, session, BucketEditInput{
						ID:        mapString(input, "id"),
						Name:      optionalString(input, "name"),
						SortOrder: optionalInt(input, "sortOrder"),
					})
				},
			},
			"bucketDelete": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					if err := svc.BucketDelete(p.Context, session, stringArg(p, "id")); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
			"taskCreate": &graphql.Field{
				Type: taskType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(taskCreateInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					input, ok := p.Args["input"].(map[string]interface{})
					if !ok {
						return nil, invalidInput("input is required", nil)
					}
					create := TaskCreateInput{
						BucketID:   mapString(input, "bucketId"),
						Title:      mapString(input, "title"),
						DueDate:    optionalTime(input, "dueDate"),
						AssigneeID: optionalString(input, "assigneeId"),
					}
					if desc := optionalString(input, "description"); desc != nil {
						create.Description = *desc
					}
					return svc.TaskCreate(p.Context, session, create)
				},
			},
			"taskEdit": &graphql.Field{
				Type: taskType,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(taskEditInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					input, ok := p.Args["input"].(map[string]interface{})
					if !ok {
						return nil, invalidInput("input is required", nil)
					}
					return svc.TaskEdit(p.Context, session, TaskEditInput{
						ID:          mapString(input, "id"),
						BucketID:    optionalString(input, "bucketId"),
						SortOrder:   optionalInt(input, "sortOrder"),
						Title:       optionalString(input, "title"),
						Description: optionalString(input, "description"),
						DueDate:     optionalTime(input, "dueDate"),
						ClearDue:    mapBool(input, "clearDueDate"),
						Completed:   optionalBool(input, "completed"),
						AssigneeID:  optionalString(input, "assigneeId"),
						ClearAssign: mapBool(input, "clearAssignee"),
					})
				},
			},
			"taskDelete": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					if err := svc.TaskDelete(p.Context, session, stringArg(p, "id")); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
			"checklistAdd": &graphql.Field{
				Type: checklistItemType,
				Args: graphql.FieldConfigArgument{
					"taskId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"title":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.ChecklistAdd(p.Context, session, stringArg(p, "taskId"), stringArg(p, "title"))
				},
			},
			"checklistToggle": &graphql.Field{
				Type: checklistItemType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.ChecklistToggle(p.Context, session, stringArg(p, "id"))
				},
			},
			"checklistDelete": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					if err := svc.ChecklistDelete(p.Context, session, stringArg(p, "id")); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
			"commentAdd": &graphql.Field{
				Type: commentType,
				Args: graphql.FieldConfigArgument{
					"taskId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"body":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.CommentAdd(p.Context, session, stringArg(p, "taskId"), stringArg(p, "body"))
				},
			},
			"commentEdit": &graphql.Field{
				Type: commentType,
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"body": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return svc.CommentEdit(p.Context, session, stringArg(p, "id"), stringArg(p, "body"))
				},
			},
			"commentDelete": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					if err := svc.CommentDelete(p.Context, session, stringArg(p, "id")); err != nil {
						return nil, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// requireSession pulls the authenticated session from the request context.
func requireSession(p graphql.ResolveParams) (Session, error) {
	session, ok := sessionFrom(p.Context)
	if !ok {
		return Session{}, unauthorized("Authentication required")
	}
	return session, nil
}

func stringArg(p graphql.ResolveParams, name string) string {
	value, _ := p.Args[name].(string)
	return value
}

func intArg(p graphql.ResolveParams, name string, fallback int) int {
	if value, ok := p.Args[name].(int); ok {
		return value
	}
	return fallback
}

func mapString(m map[string]interface{}, key string) string {
	value, _ := m[key].(string)
	return value
}

func mapBool(m map[string]interface{}, key string) bool {
	value, _ := m[key].(bool)
	return value
}

func optionalString(m map[string]interface{}, key string) *string {
	if value, ok := m[key].(string); ok {
		return &value
	}
	return nil
}

func optionalInt(m map[string]interface{}, key string) *int {
	if value, ok := m[key].(int); ok {
		return &value
	}
	return nil
}

func optionalBool(m map[string]interface{}, key string) *bool {
	if value, ok := m[key].(bool); ok {
		return &value
	}
	return nil
}

func optionalTime(m map[string]interface{}, key string) *time.Time {
	switch value := m[key].(type) {
	case time.Time:
		return &value
	case string:
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}
