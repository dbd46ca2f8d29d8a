package server

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// generateJWT returns a signed token for a session.
func (svc *Service) generateJWT(sessionID string, userID int64, admin bool) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["sid"] = sessionID
	claims["uid"] = userID
	claims["adm"] = admin

	tokenString, err := token.SignedString(svc.secret)
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// parseJWT validates a token and returns its session id and user id.
func (svc *Service) parseJWT(tokenString string) (sessionID string, userID int64, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
		}
		return svc.secret, nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("error parsing JWT: %v", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", 0, fmt.Errorf("failed authorization")
	}
	sessionID, ok = claims["sid"].(string)
	if !ok {
		return "", 0, fmt.Errorf("session claim %v is not a simple string", claims["sid"])
	}
	uid, ok := claims["uid"].(float64)
	if !ok {
		return "", 0, fmt.Errorf("user claim %v is not a number", claims["uid"])
	}
	return sessionID, int64(uid), nil
}
