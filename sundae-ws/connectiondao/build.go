package connectiondao

import "github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

// Build creates a connections DAO. An empty override selects the standard
// table name for env.
func Build(api dynamodbiface.DynamoDBAPI, env, override string) *DAO {
	tableName := override
	if tableName == "" {
		tableName = TableName(env)
	}
	return New(api, tableName)
}

// TableName returns the DynamoDB table name for the given environment.
func TableName(env string) string {
	return env + "-sundae-relay--connections"
}
