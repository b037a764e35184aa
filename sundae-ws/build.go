package sundaews

import (
	"errors"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/sundae-relay/sundae-ddb"
	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/connectiondao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
)

// BuildStore returns the membership store selected by the command line:
// process memory with --memory, the connections table otherwise.
func BuildStore() (Store, error) {
	if WSOpts.Memory {
		if !sundaecli.CommonOpts.Console {
			return nil, errors.New("--memory is only supported with --console")
		}
		return NewMemoryStore(), nil
	}

	api, err := sundaeddb.DynamoDBAPI(sundaeddb.Session())
	if err != nil {
		return nil, err
	}
	return connectiondao.Build(api, sundaecli.CommonOpts.Env, sundaeddb.DDBOpts.TableName), nil
}

// BuildMetrics returns nil with --dry.
func BuildMetrics(service sundaecli.Service) *sundaecli.Metrics {
	if sundaecli.CommonOpts.Dry {
		return nil
	}
	return sundaecli.NewMetrics(service, cloudwatch.New(awsSession()))
}

// BuildDispatcher wires a Dispatcher delivering through the API Gateway
// Management API.
func BuildDispatcher(service sundaecli.Service, store Store) *Dispatcher {
	return &Dispatcher{
		Registry:    NewRegistry(store),
		Channels:    NewManagementChannels(awsSession()),
		Logger:      sundaecli.Logger(service),
		Metrics:     BuildMetrics(service),
		Concurrency: WSOpts.Concurrency,
		SendTimeout: WSOpts.SendTimeout,
		Endpoint:    WSOpts.Endpoint,
	}
}

// awsSession is a session for every service but DynamoDB, which honors
// --ddb-endpoint.
func awsSession() *session.Session {
	config := aws.NewConfig()
	if sundaeddb.DDBOpts.Region != "" {
		config = config.WithRegion(sundaeddb.DDBOpts.Region)
	}
	return session.Must(session.NewSession(config))
}
