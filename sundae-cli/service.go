package sundaecli

// DefaultNamespace is the CloudWatch namespace shared by the relay services.
const DefaultNamespace = "sundae-relay"

type Service struct {
	Name      string
	Subpath   string
	Version   string
	Namespace string
	Schema    string
}

func NewService(name string) Service {
	return Service{
		Name:      name,
		Version:   CommitHash(),
		Namespace: DefaultNamespace,
	}
}

// NewSubpathService is a service mounted below /{name} when served over HTTP.
func NewSubpathService(name string) Service {
	service := NewService(name)
	service.Subpath = name
	return service
}

func (s Service) namespace() string {
	if s.Namespace == "" {
		return DefaultNamespace
	}
	return s.Namespace
}
